package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New monta o logger do serviço: development em "local", production nos demais.
// level vazio ou inválido mantém o nível padrão da configuração escolhida; o
// valor inválido é avisado no próprio logger.
func New(serviceName, env, level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if env == "local" {
		cfg = zap.NewDevelopmentConfig()
	}
	var levelErr error
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			levelErr = err
		} else {
			cfg.Level = lvl
		}
	}

	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := cfg.Build(
		zap.Fields(
			zap.String("service", serviceName),
			zap.String("env", env),
		),
	)
	if err != nil {
		return nil, err
	}
	if levelErr != nil {
		log.Warn("invalid LOG_LEVEL, using default", zap.String("level", level), zap.Error(levelErr))
	}
	return log, nil
}

// Session devolve um logger filho com o código da sessão já anexado
func Session(l *zap.Logger, sessionID string) *zap.Logger {
	return l.With(zap.String("sessionId", sessionID))
}
