package domain

// Parish mirrors the schedule API's parish resource. The bot never persists
// parishes; they are fetched per request and cached in the session for the
// lifetime of a scene.
type Parish struct {
	ID                 string `json:"id"`
	Key                string `json:"key"`
	Title              string `json:"title"`
	Address            string `json:"address"`
	Phone              string `json:"phone"`
	Email              string `json:"email"`
	Website            string `json:"website"`
	BroadcastURL       string `json:"broadcast_url"`
	ImgPath            string `json:"img_path"`
	NeedUpdate         bool   `json:"need_update"`
	UpdatePeriodInDays int    `json:"update_period_in_days"`
	LastMassActualDate string `json:"last_mass_actual_date"`
	LastModifiedDate   string `json:"last_modified_date"`
}

// MassDay is one day of a parish's weekly schedule.
type MassDay struct {
	Date      string   `json:"date"`
	MassHours []string `json:"mass_hours"`
}

// ExpiredParish describes a parish whose schedule relevance has lapsed or is
// about to lapse, as reported by the schedule API's expiry scan.
type ExpiredParish struct {
	ID                   string `json:"id"`
	Key                  string `json:"key"`
	Name                 string `json:"name"`
	ShortName            string `json:"shortName"`
	UpdatePeriodInDays   int    `json:"updatePeriodInDays"`
	LastConfirmRelevance string `json:"lastConfirmRelevance"`
}
