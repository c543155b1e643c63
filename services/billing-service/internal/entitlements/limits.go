package entitlements

// Limits represents the entitlements derived from a subscription tier.
// Keep this small and stable: other services may rely on these limits to enforce behavior.
type Limits struct {
	Tier                   string `json:"tier"`
	MaxStaff               int    `json:"max_staff"`
	MaxServices            int    `json:"max_services"`
	MaxMonthlyAppointments int    `json:"max_monthly_appointments"`
}

func LimitsForTier(tier string) Limits {
	switch tier {
	case "starter":
		return Limits{
			Tier:                   "starter",
			MaxStaff:               5,
			MaxServices:            20,
			MaxMonthlyAppointments: 500,
		}
	case "pro":
		return Limits{
			Tier:                   "pro",
			MaxStaff:               25,
			MaxServices:            100,
			MaxMonthlyAppointments: 2000,
		}
	default:
		return Limits{
			Tier:                   "free",
			MaxStaff:               3,
			MaxServices:            10,
			MaxMonthlyAppointments: 200,
		}
	}
}
