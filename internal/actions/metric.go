package actions

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/eyesight-qa/apiverify/internal/auth"
	"github.com/eyesight-qa/apiverify/internal/config"
	"github.com/eyesight-qa/apiverify/internal/sut"
	"github.com/eyesight-qa/apiverify/internal/telemetry"
)

// GetMetric resolves one metric through the configured adapter and prints it.
func GetMetric(ctx context.Context, log logrus.FieldLogger, name string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	adapter, err := buildAdapter(log, cfg)
	if err != nil {
		return err
	}

	value, err := adapter.GetMetric(ctx, name)
	if err != nil {
		return err
	}

	fmt.Printf("%s = %v\n", name, value)
	return nil
}

func buildAdapter(log logrus.FieldLogger, cfg *config.Config) (sut.Adapter, error) {
	switch cfg.SUTMode {
	case config.ModeDict:
		return sut.NewDictAdapter(cfg.Metrics), nil

	case config.ModeAPI:
		redactor := telemetry.NewRedactor(cfg.SensitiveParams...)
		recorder := telemetry.NewRecorder(log, cfg.HTTPClient(), redactor)
		resolver := auth.NewResolver(log, cfg.Auth)

		return sut.NewAPIAdapter(log, cfg.API, resolver, recorder), nil

	default:
		return nil, &config.Error{Setting: "SUT_MODE", Reason: "set to dict or api to query metrics"}
	}
}
