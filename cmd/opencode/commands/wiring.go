package commands

import (
	"context"
	"strings"

	"github.com/swissarmyhammer/agentcore/internal/acpserver"
	"github.com/swissarmyhammer/agentcore/internal/cancel"
	"github.com/swissarmyhammer/agentcore/internal/capability"
	"github.com/swissarmyhammer/agentcore/internal/command"
	"github.com/swissarmyhammer/agentcore/internal/config"
	"github.com/swissarmyhammer/agentcore/internal/event"
	"github.com/swissarmyhammer/agentcore/internal/formatter"
	"github.com/swissarmyhammer/agentcore/internal/llmstream"
	"github.com/swissarmyhammer/agentcore/internal/logging"
	"github.com/swissarmyhammer/agentcore/internal/lsp"
	"github.com/swissarmyhammer/agentcore/internal/mcp"
	"github.com/swissarmyhammer/agentcore/internal/orchestrator"
	"github.com/swissarmyhammer/agentcore/internal/permission"
	"github.com/swissarmyhammer/agentcore/internal/planmgr"
	"github.com/swissarmyhammer/agentcore/internal/provider"
	"github.com/swissarmyhammer/agentcore/internal/session"
	"github.com/swissarmyhammer/agentcore/internal/storage"
	"github.com/swissarmyhammer/agentcore/internal/tool"
	"github.com/swissarmyhammer/agentcore/internal/vcs"
	"github.com/swissarmyhammer/agentcore/pkg/acp"
	"github.com/swissarmyhammer/agentcore/pkg/types"
)

// acpRuntime bundles the components every ACP transport (stdio, HTTP)
// wires identically, so `serve` and `serve http` build it once from the
// same config/storage/provider/tool setup.
type acpRuntime struct {
	store     *session.Store
	cancelReg *cancel.Registry
	plans     *planmgr.Manager
	query     llmstream.Query
	toolExec  orchestrator.ToolExecutor
	// toolRegExec is the same value as toolExec, concretely typed so
	// runServeStdio can wire ClientFS/ClientTerminal into it once the
	// stdio Conn exists (§4.4) — buildACPRuntime runs before that Conn is
	// constructed, so it can't be done here.
	toolRegExec *acpserver.ToolRegistryExecutor
	policy      permission.Policy
	caps        acp.CapabilitySet
	orchCfg     orchestrator.Config

	// availableTools seeds every session's AvailableTools set (§3): the
	// local registry's tools plus whatever MCP servers connected at
	// startup exposed. Handed straight through to NewServer/NewHTTPServer.
	availableTools map[string]session.ToolDescriptor
	// cmds expands configured "/name" slash commands before the
	// orchestrator sees a prompt. Nil when no commands are configured.
	cmds *command.Executor

	mcpClient *mcp.Client
	vcsWatch  *vcs.Watcher
	lspClient *lsp.Client
}

// Close releases the long-lived components buildACPRuntime started
// (MCP server connections, the VCS watcher, any spawned language
// servers), best-effort: failures are logged, never returned, since
// this only ever runs during process shutdown.
func (rt *acpRuntime) Close() {
	if rt.mcpClient != nil {
		if err := rt.mcpClient.Close(); err != nil {
			logging.Warn().Err(err).Msg("closing MCP client")
		}
	}
	if rt.vcsWatch != nil {
		if err := rt.vcsWatch.Stop(); err != nil {
			logging.Warn().Err(err).Msg("stopping VCS watcher")
		}
	}
	if rt.lspClient != nil {
		if err := rt.lspClient.Close(); err != nil {
			logging.Warn().Err(err).Msg("closing LSP client")
		}
	}
}

// buildACPRuntime loads config/storage/providers/tools the same way the
// rest of the CLI does (config.Load, storage.New, provider.InitializeProviders,
// tool.DefaultRegistry) and wires them into the ACP-facing components
// common to every transport.
func buildACPRuntime(ctx context.Context, workDir string) (*acpRuntime, error) {
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return nil, err
	}

	appConfig, err := config.Load(workDir)
	if err != nil {
		return nil, err
	}
	if model := GetGlobalModel(); model != "" {
		appConfig.Model = model
	}
	if appConfig.Acp == nil {
		appConfig.Acp = types.DefaultAcpConfig()
	}

	store := storage.New(paths.StoragePath())
	providerReg, err := provider.InitializeProviders(ctx, appConfig)
	if err != nil {
		return nil, err
	}
	toolReg := tool.DefaultRegistry(workDir, store)

	lspClient := lsp.NewClient(workDir, appConfig.LSP != nil && appConfig.LSP.Disabled)
	if !lspClient.IsDisabled() {
		toolReg.RegisterLSPTool(lspClient)
	}

	mcpClient := mcp.NewClient()
	for _, err := range mcp.ConnectAll(ctx, mcpClient, appConfig.MCP) {
		logging.Warn().Err(err).Msg("connecting configured MCP server")
	}
	mcp.RegisterMCPTools(mcpClient, toolReg)

	var vcsWatch *vcs.Watcher
	if w, err := vcs.NewWatcher(workDir); err != nil {
		logging.Warn().Err(err).Msg("starting VCS watcher")
	} else if w != nil {
		w.Start()
		vcsWatch = w
		event.Subscribe(event.VcsBranchUpdated, func(ev event.Event) {
			if data, ok := ev.Data.(event.VcsBranchUpdatedData); ok {
				logging.Info().Str("branch", data.Branch).Msg("VCS branch changed")
			}
		})
	}

	cmdExec := command.NewExecutor(workDir, appConfig)
	fmtMgr := formatter.NewManager(workDir, appConfig)

	providerID, modelID := defaultModelFrom(appConfig)
	tools, err := toolReg.ToolInfos()
	if err != nil {
		return nil, err
	}

	sessionStore := session.NewStore(store, appConfig.Acp.MaxSessions, appConfig.Acp.AutoSaveThreshold)

	toolExec := &acpserver.ToolRegistryExecutor{
		Registry:  toolReg,
		WorkDir:   workDir,
		Store:     sessionStore,
		Gate:      capability.New(),
		Formatter: fmtMgr,
		MCP:       mcpClient,
	}

	availableTools := make(map[string]session.ToolDescriptor, len(tools))
	for _, id := range toolReg.IDs() {
		availableTools[id] = session.ToolDescriptor{Name: id, Kind: acp.InferToolKind(id)}
	}
	for _, t := range mcpClient.Tools() {
		availableTools[t.Name] = session.ToolDescriptor{Name: t.Name, Kind: acp.InferToolKind(t.Name)}
	}

	return &acpRuntime{
		store:          sessionStore,
		cancelReg:      cancel.NewRegistry(),
		plans:          planmgr.New(),
		query:          llmstream.NewQuery(providerReg, providerID, modelID, tools),
		toolExec:       toolExec,
		toolRegExec:    toolExec,
		policy:         permission.AlwaysAskPolicy,
		availableTools: availableTools,
		cmds:           cmdExec,
		mcpClient:      mcpClient,
		vcsWatch:       vcsWatch,
		lspClient:      lspClient,
		caps: acp.CapabilitySet{
			PromptImage:            true,
			PromptEmbeddedResource: true,
			LoadSession:            true,
		},
		orchCfg: orchestrator.Config{
			MaxTurnRequests: appConfig.Acp.MaxTurnRequests,
		},
	}, nil
}

func defaultModelFrom(cfg *types.Config) (providerID, modelID string) {
	if cfg.Model != "" {
		if p, m, ok := strings.Cut(cfg.Model, "/"); ok {
			return p, m
		}
	}
	return "", ""
}
