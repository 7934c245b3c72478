package domain

// TourStep is one page of the onboarding walkthrough.
type TourStep struct {
	Title   string `json:"title"`
	Element string `json:"element,omitempty"` // CSS selector of the anchored UI element
	Intro   string `json:"intro"`
}

// TourState is a client's position in the walkthrough.
type TourState struct {
	Active   bool      `json:"active"`
	Index    int       `json:"index"`
	Total    int       `json:"total"`
	Step     *TourStep `json:"step,omitempty"`
	Seen     bool      `json:"seen"`
	AutoShow bool      `json:"auto_show"`
}
