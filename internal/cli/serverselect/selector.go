package serverselect

import (
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/salesdesk-dev/salesdesk/internal/cli/config"
	"github.com/salesdesk-dev/salesdesk/internal/cli/userconfig"
	"github.com/salesdesk-dev/salesdesk/internal/logger"
)

// DefaultAlias names the server built from SALESDESK_BASE_URL or the build-time default
const DefaultAlias = "default"

// promptSelect is replaced in tests
var promptSelect = PromptServerSelection

// ResolveServer picks the server a command talks to. First match wins:
//
//	--server alias        looked up in salesdesk.json
//	baseURL               SALESDESK_BASE_URL or the build-time default
//	selected server       from `salesdesk select-server`, if still configured
//	only server           when salesdesk.json lists exactly one
//	prompt                interactive choice, remembered for next time
func ResolveServer(serverAlias, baseURL string) (*config.Server, error) {
	if serverAlias != "" {
		projectConfig, err := loadProjectConfig()
		if err != nil {
			return nil, err
		}
		return validated(projectConfig.GetServerByAlias(serverAlias))
	}

	if baseURL != "" {
		return validated(&config.Server{URL: baseURL, Alias: DefaultAlias}, nil)
	}

	projectConfig, err := loadProjectConfig()
	if err != nil {
		return nil, err
	}

	selectedURL, err := userconfig.GetSelectedServer()
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	if selectedURL != "" {
		if server, err := projectConfig.GetServerByURL(selectedURL); err == nil {
			return validated(server, nil)
		}
		// stale selection
		remember("")
	}

	var server *config.Server
	if len(projectConfig.Servers) == 1 {
		server = &projectConfig.Servers[0]
	} else if server, err = promptSelect(projectConfig); err != nil {
		return nil, err
	}

	if err := server.Validate(); err != nil {
		return nil, err
	}
	remember(server.URL)
	return server, nil
}

// remember saves the selection; failing to save never fails the command
func remember(serverURL string) {
	if err := userconfig.SetSelectedServer(serverURL); err != nil {
		log := logger.GetLogger()
		log.Warn().Err(err).Msg("Failed to save selected server")
	}
}

func loadProjectConfig() (*config.Config, error) {
	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w\nRun 'salesdesk init' to create a configuration file, or set SALESDESK_BASE_URL", err)
	}
	return cfg, nil
}

func validated(server *config.Server, err error) (*config.Server, error) {
	if err != nil {
		return nil, err
	}
	if err := server.Validate(); err != nil {
		return nil, err
	}
	return server, nil
}

// PromptServerSelection shows an interactive prompt for the user to select a server
func PromptServerSelection(projectConfig *config.Config) (*config.Server, error) {
	if len(projectConfig.Servers) == 0 {
		return nil, fmt.Errorf("no servers configured in %s", config.ConfigFileName)
	}

	type serverOption struct {
		Label  string
		Server *config.Server
	}

	options := make([]serverOption, len(projectConfig.Servers))
	for i := range projectConfig.Servers {
		server := &projectConfig.Servers[i]
		options[i] = serverOption{
			Label:  fmt.Sprintf("%s (%s)", server.Alias, server.URL),
			Server: server,
		}
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label }}",
		Selected: "{{ .Label | green }}",
	}

	prompt := promptui.Select{
		Label:     "Select a server",
		Items:     options,
		Templates: templates,
		Size:      10,
		// typing "/" filters by alias or URL
		Searcher: func(input string, index int) bool {
			return strings.Contains(strings.ToLower(options[index].Label), strings.ToLower(strings.TrimSpace(input)))
		},
	}

	index, _, err := prompt.Run()
	if err != nil {
		return nil, fmt.Errorf("server selection cancelled: %w", err)
	}

	return options[index].Server, nil
}
