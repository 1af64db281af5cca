package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"mediaorganizer/internal/config"
)

// libraryArgAnnotation marks commands whose first positional argument is the
// library directory.
const libraryArgAnnotation = "libraryArg"

type commandContext struct {
	configFlag  *string
	libraryFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, libraryFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		libraryFlag: libraryFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// ensureConfig loads the configuration once, applies the library override,
// and creates the log and state directories of an existing library. A
// library path that does not exist is an error rather than created.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if c.libraryFlag != nil && strings.TrimSpace(*c.libraryFlag) != "" {
			if err := cfg.SetLibraryDir(*c.libraryFlag); err != nil {
				c.configErr = err
				return
			}
		}
		if dir := cfg.LibraryDir(); dir != "" {
			info, err := os.Stat(dir)
			switch {
			case err != nil:
				c.configErr = fmt.Errorf("library %s: %w", dir, err)
				return
			case !info.IsDir():
				c.configErr = fmt.Errorf("library %s: not a directory", dir)
				return
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// requireLibrary returns the config of a command that operates on a library.
func (c *commandContext) requireLibrary() (*config.Config, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if cfg.LibraryDir() == "" {
		return nil, errors.New("no library configured: pass a directory, use --library, or set paths.library_dir (MEDIAORG_LIBRARY)")
	}
	return cfg, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
