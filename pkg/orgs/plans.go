package orgs

// Plan describes the capabilities of a subscription plan
type Plan struct {
	Type                     PlanType
	Name                     string
	BaseSeats                int
	MaxUsers                 *int
	HasAdditionalSeatsOption bool
	MaxAdditionalSeats       *int
	AllowSeatAutoscale       bool
	UseDirectory             bool
	UseCustomPermissions     bool
	UsePolicies              bool
	UseSso                   bool
	UseKeyConnector          bool
	UseSecretsManager        bool
}

func intPtr(v int) *int { return &v }

var plans = map[PlanType]Plan{
	PlanFree: {
		Type:      PlanFree,
		Name:      "Free",
		BaseSeats: 2,
		MaxUsers:  intPtr(2),
	},
	PlanTeamsMonthly: {
		Type:                     PlanTeamsMonthly,
		Name:                     "Teams (Monthly)",
		HasAdditionalSeatsOption: true,
		AllowSeatAutoscale:       true,
		UseDirectory:             true,
		UseSecretsManager:        true,
	},
	PlanTeamsAnnually: {
		Type:                     PlanTeamsAnnually,
		Name:                     "Teams (Annually)",
		HasAdditionalSeatsOption: true,
		AllowSeatAutoscale:       true,
		UseDirectory:             true,
		UseSecretsManager:        true,
	},
	PlanEnterpriseMonthly: {
		Type:                     PlanEnterpriseMonthly,
		Name:                     "Enterprise (Monthly)",
		HasAdditionalSeatsOption: true,
		AllowSeatAutoscale:       true,
		UseDirectory:             true,
		UseCustomPermissions:     true,
		UsePolicies:              true,
		UseSso:                   true,
		UseKeyConnector:          true,
		UseSecretsManager:        true,
	},
	PlanEnterpriseAnnually: {
		Type:                     PlanEnterpriseAnnually,
		Name:                     "Enterprise (Annually)",
		HasAdditionalSeatsOption: true,
		AllowSeatAutoscale:       true,
		UseDirectory:             true,
		UseCustomPermissions:     true,
		UsePolicies:              true,
		UseSso:                   true,
		UseKeyConnector:          true,
		UseSecretsManager:        true,
	},
}

// PlanByType looks up a plan
func PlanByType(t PlanType) (Plan, bool) {
	p, ok := plans[t]
	return p, ok
}

// apply copies the plan's features onto org
func (p Plan) apply(org *Organization, additionalSeats int) {
	org.PlanType = p.Type
	seats := p.BaseSeats + additionalSeats
	org.Seats = &seats
	org.UseDirectory = p.UseDirectory
	org.UseCustomPermissions = p.UseCustomPermissions
	org.UsePolicies = p.UsePolicies
	org.UseSso = p.UseSso
	org.UseKeyConnector = p.UseKeyConnector
	org.UseSecretsManager = p.UseSecretsManager
	if !p.AllowSeatAutoscale {
		org.MaxAutoscaleSeats = nil
	}
}
