package panel

import (
	"encoding/json"
	"strings"

	"github.com/ohdear-panel/internal/domain/actor"
	"github.com/ohdear-panel/internal/domain/permission"
)

type FeatureFlags struct {
	View    bool `json:"view"`
	Toggle  bool `json:"toggle"`
	Request bool `json:"request"`
}

type FrontendMatrix struct {
	Uptime            FeatureFlags `json:"uptime"`
	BrokenLinks       FeatureFlags `json:"broken_links"`
	MixedContent      FeatureFlags `json:"mixed_content"`
	CertificateHealth FeatureFlags `json:"certificate_health"`
	ApplicationHealth FeatureFlags `json:"application_health"`
	Performance       FeatureFlags `json:"performance"`
}

func flags(a *actor.Actor, f permission.Feature) FeatureFlags {
	return FeatureFlags{
		View:    a.Can(f.ViewKey()),
		Toggle:  a.Can(f.ToggleKey()),
		Request: a.Can(f.RequestKey()),
	}
}

// FrontendPermissions is the permission matrix exposed to panel scripts,
// or nil when there is no actor.
func FrontendPermissions(a *actor.Actor) *FrontendMatrix {
	if a == nil {
		return nil
	}
	return &FrontendMatrix{
		Uptime:            flags(a, permission.Uptime),
		BrokenLinks:       flags(a, permission.BrokenLinks),
		MixedContent:      flags(a, permission.MixedContent),
		CertificateHealth: flags(a, permission.CertificateHealth),
		ApplicationHealth: flags(a, permission.ApplicationHealth),
		Performance:       flags(a, permission.Performance),
	}
}

// PermissionsScript renders the script that publishes the matrix as
// window.OhDear.permissions.
func PermissionsScript(a *actor.Actor) (string, error) {
	data, err := json.Marshal(FrontendPermissions(a))
	if err != nil {
		return "", err
	}
	return strings.Join([]string{
		"window.OhDear = window.OhDear || {};",
		"window.OhDear.permissions = window.OhDear.permissions || {};",
		"window.OhDear.permissions = " + string(data) + ";",
	}, "\n"), nil
}
