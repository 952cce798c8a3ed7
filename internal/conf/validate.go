// conf/validate.go settings validation
package conf

import (
	"errors"
	"fmt"
)

// ValidateSettings checks the loaded configuration for inconsistencies that
// would prevent the service from starting.
func ValidateSettings(settings *Settings) error {
	var errs []error

	if err := validateInference(&settings.Inference); err != nil {
		errs = append(errs, err)
	}
	if err := validateOutput(settings); err != nil {
		errs = append(errs, err)
	}
	if settings.WebServer.Port == "" {
		errs = append(errs, errors.New("webserver port must not be empty"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validateInference(inference *InferenceConfig) error {
	if inference.BaseURL == "" {
		return errors.New("inference base URL must not be empty")
	}
	if inference.APIKey == "" {
		return errors.New("inference API key is not configured, set inference.apikey or PLANTDIAG_INFERENCE_APIKEY")
	}
	if inference.Timeout <= 0 {
		return fmt.Errorf("inference timeout must be positive, got %v", inference.Timeout)
	}
	if inference.MaxUploadSize <= 0 {
		return fmt.Errorf("inference max upload size must be positive, got %d", inference.MaxUploadSize)
	}
	return nil
}

// validateOutput requires exactly one enabled store backend so the pluggable
// datastore has an unambiguous target.
func validateOutput(settings *Settings) error {
	enabled := 0
	if settings.Output.SQLite.Enabled {
		enabled++
		if settings.Output.SQLite.Path == "" {
			return errors.New("sqlite output enabled but path is empty")
		}
	}
	if settings.Output.MySQL.Enabled {
		enabled++
		if settings.Output.MySQL.Host == "" || settings.Output.MySQL.Database == "" {
			return errors.New("mysql output enabled but host or database is empty")
		}
	}
	if settings.Output.File.Enabled {
		enabled++
		if settings.Output.File.Path == "" {
			return errors.New("file output enabled but path is empty")
		}
	}

	switch enabled {
	case 0:
		return errors.New("no output backend enabled, enable one of sqlite, mysql or file")
	case 1:
		return nil
	default:
		return fmt.Errorf("%d output backends enabled, enable exactly one", enabled)
	}
}
