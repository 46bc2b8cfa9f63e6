package models

// User is a Gabble account as the server reports it. Accounts are created
// through the GitHub OAuth flow, so GithubID is always populated.
type User struct {
	ID        string `json:"id"`
	GithubID  string `json:"github_id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
	CreatedAt string `json:"created_at"`
}
