package model

// Project is a GitLab project of a collected group. Keyed by the GitLab global id.
type Project struct {
	ID       string   `json:"p_id"`
	Name     string   `json:"p_name"`
	Path     string   `json:"p_path"`
	FullPath string   `json:"p_full_path"`
	WebURL   string   `json:"p_web_url"`
	Topics   []string `json:"topics"`
	GroupKey string   `json:"group_key"`
}
