package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabrielkoerich/vault/configs"
	"github.com/gabrielkoerich/vault/internal/domain-adapters/gateways"
	orchestrators "github.com/gabrielkoerich/vault/internal/domain-orchestrators"
	"github.com/gabrielkoerich/vault/internal/domain/entities"
	gatewayports "github.com/gabrielkoerich/vault/internal/domain/interfaces/gateways"
	"github.com/gabrielkoerich/vault/internal/domain/services"
	"github.com/gabrielkoerich/vault/internal/external-adapters/filestore"
	"github.com/gabrielkoerich/vault/internal/external-adapters/keyring"
	"github.com/gabrielkoerich/vault/internal/external-adapters/openpgp"
	"github.com/gabrielkoerich/vault/internal/external-adapters/yaml"
	"github.com/gabrielkoerich/vault/internal/external-adapters/zaplog"
)

// app holds what every command needs: resolved directories, config.yml and the logger
type app struct {
	home      string
	dirs      filestore.Dirs
	keyStore  *yaml.KeyConfigStore
	keyConfig entities.KeyConfig
	logger    *zaplog.Logger
	out       *printer
}

func newApp() (*app, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to find home directory: %w", err)
	}

	dirs, err := filestore.ResolveDirs(home, os.Getenv)
	if err != nil {
		return nil, err
	}

	keyStore := yaml.NewKeyConfigStore(dirs.KeyConfigFile(), defaultKeyConfig(dirs), home, os.LookupEnv)
	cfg, err := keyStore.Load()
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if v := os.Getenv("VAULT_LOG_LEVEL"); v != "" {
		level = v
	}
	format := cfg.LogFormat
	if v := os.Getenv("VAULT_LOG_FORMAT"); v != "" {
		format = v
	}

	logger, err := zaplog.New(zaplog.Options{
		Level:  level,
		Format: format,
		Color:  colorEnabled(os.Stderr),
		Output: os.Stderr,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		home:      home,
		dirs:      dirs,
		keyStore:  keyStore,
		keyConfig: cfg,
		logger:    logger,
		out:       newPrinter(os.Stdout),
	}, nil
}

// mustApp builds the app or exits
func mustApp() *app {
	a, err := newApp()
	if err != nil {
		fail(err)
	}
	return a
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func defaultKeyConfig(dirs filestore.Dirs) entities.KeyConfig {
	cfg := entities.DefaultKeyConfig()
	cfg.IdentityFile = dirs.IdentityFile()
	return cfg
}

func (a *app) pathsFile() *filestore.PathsFile {
	return filestore.NewPathsFile(a.dirs.PathsFile(), a.home, os.LookupEnv, a.logger)
}

func (a *app) store() *filestore.Store {
	return filestore.NewStore(a.dirs.Data, a.logger)
}

func (a *app) secretStore(readStdin bool) *keyring.SecretStore {
	return keyring.NewSecretStore(keyring.Options{
		UseKeyring: a.keyConfig.Keyring,
		ReadStdin:  readStdin,
	}, a.logger)
}

func (a *app) lockdownOrchestrator() *orchestrators.LockdownOrchestrator {
	return orchestrators.NewLockdownOrchestrator(
		a.pathsFile(),
		a.store(),
		gateways.NewArchiver(a.logger),
		gateways.NewChecksumVerifier(),
		services.NewLockdownService(),
		a.logger,
		orchestrators.LockdownOrchestratorConfig{
			Home:      a.home,
			Protected: append(a.dirs.Prune(), a.keyConfig.IdentityFile),
		},
	)
}

func (a *app) scanOrchestrator() *orchestrators.ScanOrchestrator {
	return orchestrators.NewScanOrchestrator(
		gateways.NewFileFinder(a.logger),
		gateways.NewTextSearcher(a.logger),
		services.NewScanService(),
		a.logger,
	)
}

func (a *app) scanConfigRepository() *yaml.ScanConfigRepository {
	parser := yaml.NewScanConfigParser(a.home, os.LookupEnv)
	return yaml.NewScanConfigRepository(parser, configs.DefaultScan, a.dirs.ScanConfigFile(), sharedScanConfig())
}

// sharedScanConfig is <prefix>/share/vault/scan.yml next to an installed binary
func sharedScanConfig() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), "..", "share", "vault", "scan.yml")
}

// encryptor builds the configured backend. Passphrase backends ask the secret
// store; confirm makes an interactive prompt ask twice.
func (a *app) encryptor(ctx context.Context, secrets *keyring.SecretStore, confirm bool) (gatewayports.Encryptor, error) {
	cfg := a.keyConfig

	if cfg.Mode == entities.KeyModeIdentity {
		if _, err := os.Stat(cfg.IdentityFile); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("identity file %s does not exist (run `vault init`): %w",
				cfg.IdentityFile, entities.ErrNotConfigured)
		}
	}

	switch cfg.Backend {
	case entities.BackendAge:
		if cfg.Mode == entities.KeyModeIdentity {
			return gateways.NewAgeIdentityEncryptor(cfg.IdentityFile, cfg.Recipients)
		}
		pass, err := secrets.Passphrase(ctx, confirm)
		if err != nil {
			return nil, err
		}
		return gateways.NewAgePassphraseEncryptor(pass, 0)

	case entities.BackendAgeCLI:
		return gateways.NewAgeCLIEncryptor(gateways.NewCommandExecutor(), cfg.AgeBinary, cfg.IdentityFile, cfg.Recipients), nil

	case entities.BackendOpenPGP:
		pass, err := secrets.Passphrase(ctx, confirm)
		if err != nil {
			return nil, err
		}
		return openpgp.NewEncryptor(pass)

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
