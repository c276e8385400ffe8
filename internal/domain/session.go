package domain

import "net/url"

// Preference keys. Each value is stored on its own row.
const (
	KeyAuthToken        = "auth_token"
	KeyCurrentUsername  = "current_username"
	KeyCurrentBlogID    = "current_blog_id"
	KeyCurrentBlogName  = "current_blog_name"
	KeyCurrentBookshelf = "current_bookshelf"
	KeyCurrentSearch    = "current_search"
)

type Session struct {
	AuthToken string `json:"-"`
	Username  string `json:"username"`
	BlogID    string `json:"blogId"`
	BlogName  string `json:"blogName"`
}

// SignedIn reports whether the session carries an auth token.
func (s Session) SignedIn() bool {
	return s.AuthToken != ""
}

// AvatarURL is the micro.blog avatar for the signed-in user, or "" when signed out.
func (s Session) AvatarURL() string {
	if s.Username == "" {
		return ""
	}
	return "https://micro.blog/" + url.PathEscape(s.Username) + "/avatar.jpg"
}

// Blog is a posting destination from the micropub config.
type Blog struct {
	UID     string `json:"uid"`
	Name    string `json:"name"`
	Default bool   `json:"default"`
}
