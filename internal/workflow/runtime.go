package workflow

import (
	"context"

	"github.com/flowloom/flowloom/internal/browser"
	"github.com/flowloom/flowloom/internal/config"
	"github.com/flowloom/flowloom/internal/logging"
)

// CredentialResolver resolves ${credential_id.username}/${credential_id.password}
// references (spec §6). No implementation ships (spec §1 Non-goals:
// "Credential encryption, key storage" is an external collaborator); the
// engine accepts the interface and a nil resolver simply leaves such
// references unresolved.
type CredentialResolver interface {
	Resolve(credentialID, field string) (string, bool)
}

// GenerationParams mirrors the Value fields of a START_GENERATION_DOWNLOADS
// action (spec §6).
type GenerationParams struct {
	MaxDownloads     int
	DownloadsFolder  string
	DuplicateMode    string // "SKIP" or "FINISH"
	StartFrom        string // canonical datetime, optional
	Selectors        map[string]string
}

// GenerationStatus is the result of CHECK_GENERATION_STATUS.
type GenerationStatus struct {
	Running    bool
	Downloaded int
	LastError  string
}

// GenerationController is the narrow surface the workflow engine needs
// from GenerationDownloader (C9) to implement START/STOP_GENERATION_DOWNLOADS
// and CHECK_GENERATION_STATUS, kept as an interface here so this package
// does not need to import internal/generation's full dependency surface.
type GenerationController interface {
	Start(ctx context.Context, params GenerationParams) error
	Stop(ctx context.Context) error
	Status() GenerationStatus
}

// Runtime bundles the collaborators every action Handler needs, threaded
// explicitly rather than read from globals (spec §9: "Global mutable
// state ... model as values inside an explicit AppConfig struct").
type Runtime struct {
	Driver      browser.Driver
	Logger      *logging.Logger
	Config      *config.AppConfig
	Credentials CredentialResolver
	Generation  GenerationController
}
