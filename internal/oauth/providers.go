package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

const notionVersion = "2022-06-28"

// Slack posts meeting summaries to channels.
func Slack() *Provider {
	return &Provider{
		Name:            "slack",
		DisplayName:     "Slack",
		AuthURL:         "https://slack.com/oauth/v2/authorize",
		Scopes:          "chat:write,channels:read,channels:join,files:write",
		ExtraAuthParams: map[string]string{"user_scope": "chat:write"},
		TokenURL:        "https://slack.com/api/oauth.v2.access",
		Encoding:        FormBody,
		ClientAuth:      ClientSecretInBody,
		CheckResponse:   checkSlackOK,
		DecodeToken:     decodeSlackToken,
		Verify: Lookup{
			Name:   "auth.test",
			Method: http.MethodPost,
			URL:    "https://slack.com/api/auth.test",
			Auth:   BearerToken,
			Decode: decodeSlackIdentity,
		},
	}
}

func checkSlackOK(body []byte) error {
	var resp struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode slack response: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("slack error: %s", resp.Error)
	}
	return nil
}

func decodeSlackToken(body []byte, tokens *TokenSet) error {
	var resp struct {
		Team struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"team"`
		AuthedUser struct {
			ID          string `json:"id"`
			AccessToken string `json:"access_token"`
		} `json:"authed_user"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return err
	}

	tokens.UserToken = resp.AuthedUser.AccessToken
	setIf(tokens.Metadata, "slackTeamId", resp.Team.ID)
	setIf(tokens.Metadata, "slackTeamName", resp.Team.Name)
	setIf(tokens.Metadata, "userId", resp.AuthedUser.ID)
	return nil
}

func decodeSlackIdentity(body []byte, meta map[string]string) error {
	if err := checkSlackOK(body); err != nil {
		return err
	}
	var resp struct {
		Team   string `json:"team"`
		TeamID string `json:"team_id"`
		User   string `json:"user"`
		URL    string `json:"url"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return err
	}
	setIf(meta, "slackTeamId", resp.TeamID)
	setIf(meta, "slackTeamName", resp.Team)
	setIf(meta, "user", resp.User)
	setIf(meta, "url", resp.URL)
	return nil
}

// Jira receives action items as issues.
func Jira() *Provider {
	resources := Lookup{
		Name:   "accessible-resources",
		URL:    "https://api.atlassian.com/oauth/token/accessible-resources",
		Auth:   BearerToken,
		Decode: decodeJiraResources,
	}
	return &Provider{
		Name:        "jira",
		DisplayName: "Jira",
		AuthURL:     "https://auth.atlassian.com/authorize",
		Scopes:      "read:jira-work write:jira-work offline_access",
		ExtraAuthParams: map[string]string{
			"audience":      "api.atlassian.com",
			"prompt":        "consent",
			"response_type": "code",
		},
		TokenURL:   "https://auth.atlassian.com/oauth/token",
		Encoding:   JSONBody,
		ClientAuth: ClientSecretInBody,
		Lookups:    []Lookup{resources},
		Verify:     resources,
	}
}

func decodeJiraResources(body []byte, meta map[string]string) error {
	var sites []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal(body, &sites); err != nil {
		return err
	}
	if len(sites) == 0 {
		return errors.New("no accessible Jira sites")
	}
	meta["cloudId"] = sites[0].ID
	setIf(meta, "siteName", sites[0].Name)
	setIf(meta, "siteUrl", sites[0].URL)
	return nil
}

// GitHub receives action items as issues.
func GitHub() *Provider {
	user := Lookup{
		Name:   "user",
		URL:    "https://api.github.com/user",
		Auth:   BearerToken,
		Decode: decodeGitHubUser,
	}
	return &Provider{
		Name:          "github",
		DisplayName:   "GitHub",
		AuthURL:       "https://github.com/login/oauth/authorize",
		Scopes:        "repo,write:org,read:user",
		TokenURL:      "https://github.com/login/oauth/access_token",
		Encoding:      JSONBody,
		ClientAuth:    ClientSecretInBody,
		CheckResponse: checkGitHubError,
		Lookups:       []Lookup{user},
		Verify:        user,
	}
}

// GitHub reports a bad code with a 200 and an error field.
func checkGitHubError(body []byte) error {
	var resp struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode github response: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("github error: %s: %s", resp.Error, resp.Description)
	}
	return nil
}

func decodeGitHubUser(body []byte, meta map[string]string) error {
	var user struct {
		Login     string `json:"login"`
		ID        int64  `json:"id"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return err
	}
	if user.Login == "" {
		return errors.New("github user has no login")
	}
	meta["username"] = user.Login
	meta["userId"] = strconv.FormatInt(user.ID, 10)
	setIf(meta, "avatarUrl", user.AvatarURL)
	return nil
}

// Notion receives meeting notes as pages.
func Notion() *Provider {
	return &Provider{
		Name:        "notion",
		DisplayName: "Notion",
		AuthURL:     "https://api.notion.com/v1/oauth/authorize",
		ExtraAuthParams: map[string]string{
			"owner":         "user",
			"response_type": "code",
		},
		TokenURL:     "https://api.notion.com/v1/oauth/token",
		Encoding:     JSONBody,
		ClientAuth:   ClientSecretBasic,
		TokenHeaders: map[string]string{"Notion-Version": notionVersion},
		DecodeToken:  decodeNotionToken,
		Verify: Lookup{
			Name:    "users/me",
			URL:     "https://api.notion.com/v1/users/me",
			Headers: map[string]string{"Notion-Version": notionVersion},
			Auth:    BearerToken,
			Decode:  decodeNotionBot,
		},
	}
}

func decodeNotionToken(body []byte, tokens *TokenSet) error {
	var resp struct {
		WorkspaceID   string `json:"workspace_id"`
		WorkspaceName string `json:"workspace_name"`
		WorkspaceIcon string `json:"workspace_icon"`
		BotID         string `json:"bot_id"`
		Owner         struct {
			Type string `json:"type"`
			User struct {
				ID string `json:"id"`
			} `json:"user"`
		} `json:"owner"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return err
	}

	setIf(tokens.Metadata, "workspaceId", resp.WorkspaceID)
	setIf(tokens.Metadata, "workspaceName", resp.WorkspaceName)
	setIf(tokens.Metadata, "workspaceIcon", resp.WorkspaceIcon)
	setIf(tokens.Metadata, "botId", resp.BotID)
	setIf(tokens.Metadata, "ownerType", resp.Owner.Type)
	setIf(tokens.Metadata, "ownerId", resp.Owner.User.ID)
	return nil
}

func decodeNotionBot(body []byte, meta map[string]string) error {
	var resp struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return err
	}
	if resp.ID == "" {
		return errors.New("notion user has no id")
	}
	meta["botId"] = resp.ID
	setIf(meta, "name", resp.Name)
	return nil
}

// ClickUp receives action items as tasks.
func ClickUp() *Provider {
	return &Provider{
		Name:        "clickup",
		DisplayName: "ClickUp",
		AuthURL:     "https://app.clickup.com/api",
		TokenURL:    "https://api.clickup.com/api/v2/oauth/token",
		Encoding:    QueryParams,
		ClientAuth:  ClientSecretInBody,
		Lookups: []Lookup{{
			Name:   "team",
			URL:    "https://api.clickup.com/api/v2/team",
			Auth:   RawToken,
			Decode: decodeClickUpTeams,
		}},
		Verify: Lookup{
			Name:   "user",
			URL:    "https://api.clickup.com/api/v2/user",
			Auth:   RawToken,
			Decode: decodeClickUpUser,
		},
	}
}

func decodeClickUpTeams(body []byte, meta map[string]string) error {
	var resp struct {
		Teams []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"teams"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return err
	}
	if len(resp.Teams) == 0 {
		return errors.New("no authorized ClickUp workspaces")
	}
	meta["workspaceId"] = resp.Teams[0].ID
	setIf(meta, "workspaceName", resp.Teams[0].Name)
	return nil
}

func decodeClickUpUser(body []byte, meta map[string]string) error {
	var resp struct {
		User struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
			Email    string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return err
	}
	if resp.User.ID == 0 {
		return errors.New("clickup user has no id")
	}
	meta["userId"] = strconv.FormatInt(resp.User.ID, 10)
	setIf(meta, "username", resp.User.Username)
	return nil
}

func setIf(meta map[string]string, key, value string) {
	if value != "" {
		meta[key] = value
	}
}
