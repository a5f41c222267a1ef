package registry

import (
	"path/filepath"

	"warden/internal/api"
	"warden/internal/config"
)

var (
	serviceTypes = []string{
		string(api.TypeSimple), string(api.TypeForking), string(api.TypeOneshot),
		string(api.TypeNotify), string(api.TypeIdle), string(api.TypeTarget),
	}
	restartModes = []string{
		string(api.RestartNever), string(api.RestartOnSuccess), string(api.RestartOnFailure),
		string(api.RestartOnAbnormal), string(api.RestartAlways),
	}
	backoffKinds = []string{string(api.BackoffConstant), string(api.BackoffExponential)}
)

// Validate checks a single definition in isolation. References to other
// services are checked when the dependency graph is built.
func Validate(def api.ServiceDefinition) error {
	var errs config.ValidationErrors

	if err := config.ValidateEntityName(def.Name, "service"); err != nil {
		errs = append(errs, err.(config.ValidationError))
	}
	if err := config.ValidateOneOf("type", string(def.Type), serviceTypes); err != nil {
		errs = append(errs, err.(config.ValidationError))
	}

	if def.IsVirtual() {
		if def.Exec != "" {
			errs.Add("exec", "must be empty for a target", def.Exec)
		}
	} else if err := config.ValidateRequired("exec", def.Exec, "service"); err != nil {
		errs = append(errs, err.(config.ValidationError))
	}

	if def.Restart.Mode != "" {
		if err := config.ValidateOneOf("restart.policy", string(def.Restart.Mode), restartModes); err != nil {
			errs = append(errs, err.(config.ValidationError))
		}
	}
	if def.Restart.Backoff != "" {
		if err := config.ValidateOneOf("restart.backoff", string(def.Restart.Backoff), backoffKinds); err != nil {
			errs = append(errs, err.(config.ValidationError))
		}
	}
	if def.Restart.MaxAttempts < 0 {
		errs.Add("restart.maxAttempts", "must not be negative", def.Restart.MaxAttempts)
	}
	if def.Restart.Delay < 0 {
		errs.Add("restart.delay", "must not be negative", def.Restart.Delay)
	}
	if def.Restart.Backoff == api.BackoffExponential && def.Restart.MaxDelay > 0 && def.Restart.MaxDelay < def.Restart.Delay {
		errs.Add("restart.maxDelay", "must not be below restart.delay", def.Restart.MaxDelay)
	}
	if def.StartTimeout < 0 {
		errs.Add("startTimeout", "must not be negative", def.StartTimeout)
	}
	if def.StopTimeout < 0 {
		errs.Add("stopTimeout", "must not be negative", def.StopTimeout)
	}

	if def.Type == api.TypeForking {
		if err := config.ValidateRequired("pidFile", def.PIDFile, "forking service"); err != nil {
			errs = append(errs, err.(config.ValidationError))
		} else if !filepath.IsAbs(def.PIDFile) {
			errs.Add("pidFile", "must be an absolute path", def.PIDFile)
		}
	}
	if def.RemainAfterExit && def.Type != api.TypeOneshot {
		errs.Add("remainAfterExit", "only applies to oneshot services", def.RemainAfterExit)
	}
	if def.WorkingDirectory != "" && !filepath.IsAbs(def.WorkingDirectory) {
		errs.Add("workingDirectory", "must be an absolute path", def.WorkingDirectory)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
