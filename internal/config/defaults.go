package config

const (
	defaultHost                  = "127.0.0.1"
	defaultPort                  = 9876
	defaultDataRepo              = "~/.local/share/notesd/archive"
	defaultLogDir                = "~/.local/share/notesd/logs"
	defaultRemote                = "origin"
	defaultBranch                = "main"
	defaultCommitTemplate        = "Add transcript: {title}"
	defaultAuthorName            = "notesd"
	defaultAuthorEmail           = "notesd@localhost"
	defaultDispatchRef           = "main"
	defaultHookTimeoutSeconds    = 600
	defaultHookWorkingDir        = "."
	defaultProcessTimeoutSeconds = 300
	defaultProcessWorkingDir     = "."
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Host: defaultHost,
			Port: defaultPort,
		},
		Paths: Paths{
			DataRepo: defaultDataRepo,
			LogDir:   defaultLogDir,
		},
		Sync: Sync{
			OnStartup:               true,
			BeforeAcceptingWebhooks: true,
			PollIntervalSeconds:     0,
			FFOnly:                  true,
		},
		Git: Git{
			AutoCommit:            true,
			Remote:                defaultRemote,
			Branch:                defaultBranch,
			CommitMessageTemplate: defaultCommitTemplate,
			AuthorName:            defaultAuthorName,
			AuthorEmail:           defaultAuthorEmail,
		},
		GitHub: GitHub{
			WorkflowDispatch: WorkflowDispatch{
				Ref: defaultDispatchRef,
			},
		},
		Hooks: Hooks{
			OnNewCommits: HookCommand{
				WorkingDirectory: defaultHookWorkingDir,
				TimeoutSeconds:   defaultHookTimeoutSeconds,
			},
		},
		Processing: Processing{
			Standalone: Standalone{
				WorkingDirectory: defaultProcessWorkingDir,
				TimeoutSeconds:   defaultProcessTimeoutSeconds,
			},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
