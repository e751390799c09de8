package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/e-dard/statics3/internal/assets"
	"github.com/e-dard/statics3/internal/blob"
	"github.com/e-dard/statics3/internal/config"
	"github.com/e-dard/statics3/internal/sync"
	"github.com/e-dard/statics3/internal/utils"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	green = color.New(color.FgHiGreen).SprintFunc()
	cyan  = color.New(color.FgHiCyan).SprintFunc()
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload the site's static assets to the bucket",
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().SortFlags = false
	syncCmd.Flags().StringP("bucket", "b", "", "target bucket name")
	syncCmd.Flags().String("region", "", "bucket region")
	syncCmd.Flags().String("endpoint", "", "custom S3 endpoint URL")
	syncCmd.Flags().String("access-key", "", "AWS access key ID")
	syncCmd.Flags().String("secret-key", "", "AWS secret access key")
	syncCmd.Flags().String("prefix", "", "global key prefix")
	syncCmd.Flags().StringP("static-dir", "d", "static", "primary static directory")
	syncCmd.Flags().StringP("static-url", "u", "/static", "primary static URL prefix")
	syncCmd.Flags().StringArrayP("module", "m", nil, "sub-module asset root as name:dir:urlprefix (repeatable)")
	syncCmd.Flags().Bool("include-hidden", false, "also upload hidden files")
	syncCmd.Flags().String("filter", "", "only upload files whose relative path matches this regexp")
	syncCmd.Flags().StringArray("exclude", nil, "object keys to never upload (repeatable)")
	syncCmd.Flags().Bool("no-bucket-acl", false, "do not overwrite the bucket ACL")
	syncCmd.Flags().Int("concurrency", 4, "parallel uploads")
}

func runSync(cmd *cobra.Command, args []string) error {
	v, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	cfg, err := config.Resolve(v)
	if err != nil {
		return err
	}
	if cfg.BucketName == "" {
		return config.ErrNoBucket
	}
	cmd.SilenceUsage = true

	site, err := buildSite(cmd)
	if err != nil {
		return err
	}

	opts, err := buildOptions(cmd)
	if err != nil {
		return err
	}

	client, err := blob.NewS3ClientWithConfig(cmd.Context(), &blob.S3Config{
		BucketName: cfg.BucketName,
		Region:     cfg.Region,
		AccessKey:  cfg.AccessKeyID,
		SecretKey:  cfg.SecretAccessKey,
		Endpoint:   cfg.EndpointURL,
	})
	if err != nil {
		return err
	}

	result, err := sync.New(client, cfg, site).Run(cmd.Context(), opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s bucket=%s uploaded=%s unchanged=%d excluded=%d\n",
		green("sync complete"), cyan(cfg.BucketName), green(result.Uploaded), result.Unchanged, result.Excluded)
	return nil
}

// loadSettings builds an explicit viper instance: defaults, optional config
// file, env overrides, then flag bindings. No global viper state.
func loadSettings(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	config.SetDefaults(v)

	if cmd.Flags().Changed("config") {
		path, _ := cmd.Flags().GetString("config")
		v.SetConfigFile(path)
	} else {
		home, _ := os.UserHomeDir()
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(home, ".statics3"))
		v.SetConfigName("statics3")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	// Explicit flags override config file values.
	v.BindPFlag(config.KeyBucketName, cmd.Flags().Lookup("bucket"))
	v.BindPFlag(config.KeyRegion, cmd.Flags().Lookup("region"))
	v.BindPFlag(config.KeyEndpointURL, cmd.Flags().Lookup("endpoint"))
	v.BindPFlag(config.KeyAccessKeyID, cmd.Flags().Lookup("access-key"))
	v.BindPFlag(config.KeySecretAccessKey, cmd.Flags().Lookup("secret-key"))
	v.BindPFlag(config.KeyPrefix, cmd.Flags().Lookup("prefix"))

	v.SetEnvPrefix("STATICS3")
	v.AutomaticEnv()

	return v, nil
}

func buildSite(cmd *cobra.Command) (*assets.Site, error) {
	staticDir, _ := cmd.Flags().GetString("static-dir")
	staticURL, _ := cmd.Flags().GetString("static-url")

	dir, err := utils.ResolvePath(staticDir)
	if err != nil {
		return nil, err
	}

	site := &assets.Site{
		Primary: assets.Root{Dir: dir, URLPrefix: staticURL},
	}

	moduleSpecs, _ := cmd.Flags().GetStringArray("module")
	for _, spec := range moduleSpecs {
		root, err := parseModuleRoot(spec)
		if err != nil {
			return nil, err
		}
		site.Modules = append(site.Modules, root)
	}
	return site, nil
}

// parseModuleRoot parses a name:dir:urlprefix declaration. The dir may be
// empty for modules without a static directory.
func parseModuleRoot(spec string) (assets.Root, error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 || parts[0] == "" {
		return assets.Root{}, fmt.Errorf("bad module declaration %q, want name:dir:urlprefix", spec)
	}

	root := assets.Root{Name: parts[0], URLPrefix: parts[2]}
	if parts[1] != "" {
		dir, err := utils.ResolvePath(parts[1])
		if err != nil {
			return assets.Root{}, err
		}
		root.Dir = dir
	}
	return root, nil
}

func buildOptions(cmd *cobra.Command) (sync.Options, error) {
	var opts sync.Options

	opts.IncludeHidden, _ = cmd.Flags().GetBool("include-hidden")
	opts.SkipBucketACL, _ = cmd.Flags().GetBool("no-bucket-acl")
	opts.Concurrency, _ = cmd.Flags().GetInt("concurrency")
	opts.ExcludedKeys, _ = cmd.Flags().GetStringArray("exclude")

	if pattern, _ := cmd.Flags().GetString("filter"); pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return opts, fmt.Errorf("bad filter %q: %w", pattern, err)
		}
		opts.Filter = re
	}
	return opts, nil
}
