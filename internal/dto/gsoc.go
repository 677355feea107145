package dto

// GSOCPreviewRequest lists the programme years to fetch.
type GSOCPreviewRequest struct {
	Years []int `json:"years" validate:"required,min=1,max=10,dive,min=2005,max=2100"`
}

// GSOCProject is a project candidate derived from a GSOC organisation.
type GSOCProject struct {
	Name            string  `json:"name" validate:"required"`
	Description     string  `json:"description"`
	GithubURL       string  `json:"github_url,omitempty"`
	GithubOwner     string  `json:"github_owner,omitempty"`
	GithubRepo      string  `json:"github_repo,omitempty"`
	Tags            string  `json:"tags"`
	Topics          string  `json:"topics"`
	PrimaryLanguage *string `json:"primary_language,omitempty"`
	OfficialWebsite string  `json:"official_website,omitempty"`
	GsocYear        int     `json:"gsoc_year"`
}

// GSOCImportRequest carries previewed candidates to persist.
type GSOCImportRequest struct {
	Projects []GSOCProject `json:"projects" validate:"required,min=1,dive"`
}

// GSOCImportResult reports per-candidate outcomes.
type GSOCImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Total    int      `json:"total"`
	Failures []string `json:"failures,omitempty"`
}

// GSOCPreviewResult lists deduplicated candidates across the requested years.
type GSOCPreviewResult struct {
	Projects []GSOCProject `json:"projects"`
	Count    int           `json:"count"`
	Failures []string      `json:"failures,omitempty"`
}
