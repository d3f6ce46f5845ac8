package cli

import (
	"errors"

	"github.com/charmbracelet/huh"
)

// runWizard drives an interactive prompt flow when rbacflow is invoked
// with no arguments at all, collecting the policy path, the optional
// entry-points/targets files, and the admin/best-case toggles rather than
// requiring the operator to remember every flag.
func runWizard() (string, error) {
	var policyPath string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Policy file or directory").
				Value(&policyPath).
				Validate(func(s string) error {
					if s == "" {
						return errEmptyPolicyPath
					}
					return nil
				}),
			huh.NewInput().
				Title("Entry-points file (optional)").
				Value(&entryPoints),
			huh.NewInput().
				Title("Targets file (optional)").
				Value(&targets),
			huh.NewConfirm().
				Title("Allow administrative roles?").
				Value(&admin),
			huh.NewConfirm().
				Title("Assume best-case exec (no set-UID/GID binaries)?").
				Value(&bestCase),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return policyPath, nil
}

var errEmptyPolicyPath = errors.New("policy path is required")
