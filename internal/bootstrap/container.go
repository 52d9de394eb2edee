package bootstrap

import (
	"nexus-chat-cli/internal/client"
	"nexus-chat-cli/internal/client/credential"
	"nexus-chat-cli/internal/config"
	"nexus-chat-cli/internal/dto"
	"nexus-chat-cli/internal/pkg/logger"
	"nexus-chat-cli/internal/session"
	"nexus-chat-cli/internal/transport"

	"github.com/google/uuid"
)

// Container wires the client stack together: config, loggers, credential
// store, REST client. Sessions are created on demand via NewSession.
type Container struct {
	Cfg          *config.Config
	Log          logger.ILogger
	TransportLog logger.ILogger
	Credentials  credential.Store
	Rest         client.IClient
}

func NewContainer(cfg *config.Config) *Container {
	appLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProd())
	transportLogger := logger.NewIsolatedLogger(cfg.App.TransportLogFilePath)

	creds := credential.NewFileStore(cfg.App.TokenFilePath)

	rest := client.New(client.Config{
		BaseURL:       cfg.Server.BaseURL,
		Timeout:       cfg.Server.RequestTimeout,
		StateCacheTTL: cfg.Server.StateCacheTTL,
	}, creds, appLogger)

	return &Container{
		Cfg:          cfg,
		Log:          appLogger,
		TransportLog: transportLogger,
		Credentials:  creds,
		Rest:         rest,
	}
}

// NewSession builds a controller with a fresh client-generated session
// identifier and a streaming connection scoped to it. The connection stays
// idle until the session selects the streaming transport.
func (c *Container) NewSession(mode dto.ChatMode) *session.Controller {
	sessionId := uuid.New()
	stream := transport.NewConn(c.Cfg.Server.WsBaseURL, sessionId, c.Cfg.Server.HandshakeTimeout, c.TransportLog)
	return session.New(sessionId, mode, c.Rest, stream, c.Log)
}
