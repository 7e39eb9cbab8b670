package kagebunshin

import (
	"log/slog"
	"time"

	"github.com/hazyhaar/kagebunshin/audit"
	"github.com/hazyhaar/kagebunshin/browser"
	"github.com/hazyhaar/kagebunshin/chatbus"
	"github.com/hazyhaar/kagebunshin/swarm"
)

// LLMOptions selects the vendor and model the root agent (and, unless
// overridden, every clone) talks to.
type LLMOptions struct {
	Vendor  string // "anthropic" (default) or "openai"
	Model   string
	APIKey  string
	BaseURL string
}

// SummarizerOptions selects a distinct, usually cheaper, vendor/model
// pair for the C4 handoff summary, mirroring the original's
// SUMMARIZER_MODEL/SUMMARIZER_PROVIDER split. Zero value reuses LLM.
type SummarizerOptions struct {
	Vendor string
	Model  string
}

// Options configures a root Agent.
type Options struct {
	LLM        LLMOptions
	Summarizer SummarizerOptions

	Headless         bool
	ExecutablePath   string
	RemoteURL        string
	ResourceBlocking []string
	MemoryLimit      int64
	RecycleInterval  time.Duration

	Chat        *chatbus.Bus // nil disables group chat for this process
	Room        string
	Limits      swarm.Limits
	AuditLogger *audit.SQLiteLogger // nil disables the audit trail

	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.ResourceBlocking == nil {
		o.ResourceBlocking = []string{"image", "font", "media", "stylesheet"}
	}
	if o.Room == "" {
		o.Room = "lobby"
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

func (o *Options) browserConfig() browser.Config {
	return browser.Config{
		RemoteURL:        o.RemoteURL,
		ExecutablePath:   o.ExecutablePath,
		Headless:         o.Headless,
		MemoryLimit:      o.MemoryLimit,
		RecycleInterval:  o.RecycleInterval,
		ResourceBlocking: o.ResourceBlocking,
		Logger:           o.Logger,
	}
}
