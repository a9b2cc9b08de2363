package platform

const MaxImageSize = 5 * 1024 * 1024

// Default is the registry of every platform the application supports.
func Default() *Registry {
	return NewRegistry(
		Platform{
			Name:         Instagram,
			DisplayName:  "Instagram",
			Icon:         "instagram",
			MaxChars:     2200,
			DefaultLimit: true,
			PrimaryField: "username",
			Fields: []Field{
				{Name: "username", Label: "Username", Type: FieldText, Required: true},
				{Name: "password", Label: "Password", Type: FieldPassword, Required: true},
			},
			Title: "Instagram Credentials Setup",
			SetupSteps: []string{
				"Log in to your Instagram account",
				"Ensure 2FA is temporarily disabled during setup",
				"Enter your Instagram username and password below",
				"After successful connection, you can re-enable 2FA",
			},
			HelpLinks: []Link{
				{Text: "Instagram Help Center", URL: "https://help.instagram.com/155940534568753"},
			},
		},
		Platform{
			Name:         Twitter,
			DisplayName:  "Twitter",
			Icon:         "twitter",
			MaxChars:     280,
			PrimaryField: "consumer_key",
			Fields: []Field{
				{Name: "consumer_key", Label: "API Key", Type: FieldText, Required: true},
				{Name: "consumer_secret", Label: "API Secret", Type: FieldPassword, Required: true},
				{Name: "access_token", Label: "Access Token", Type: FieldPassword, Required: true},
				{Name: "access_token_secret", Label: "Access Token Secret", Type: FieldPassword, Required: true},
			},
			Title: "Twitter API Credentials Setup",
			SetupSteps: []string{
				"Go to Twitter Developer Portal (developer.twitter.com)",
				"Create a new project and app",
				"Navigate to \"Keys and Tokens\" section",
				"Generate Consumer Keys and Access Tokens",
				"Copy and paste the credentials below",
			},
			HelpLinks: []Link{
				{Text: "OAuth 1.0a documentation", URL: "https://developer.twitter.com/en/docs/authentication/oauth-1-0a"},
				{Text: "Developer Portal", URL: "https://developer.twitter.com/en/portal/dashboard"},
			},
		},
		Platform{
			Name:         LinkedIn,
			DisplayName:  "LinkedIn",
			Icon:         "linkedin",
			MaxChars:     3000,
			PrimaryField: "access_token",
			Fields: []Field{
				{Name: "access_token", Label: "Access Token", Type: FieldPassword, Required: true},
				{Name: "owner_urn", Label: "Organization URN", Type: FieldText, Required: true},
			},
			Title: "LinkedIn API Credentials Setup",
			SetupSteps: []string{
				"Visit LinkedIn Developer Portal",
				"Create a new application",
				"Get your Access Token from OAuth 2.0 settings",
				"Find your Organization URN from company page URL",
				"Enter the credentials below",
			},
			HelpLinks: []Link{
				{Text: "LinkedIn Developer Portal", URL: "https://www.linkedin.com/developers/apps"},
				{Text: "Authorization code flow", URL: "https://learn.microsoft.com/en-us/linkedin/shared/authentication/authorization-code-flow"},
			},
		},
	)
}
