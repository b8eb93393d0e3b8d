package connector

// OptionType is the value type of a connection option.
type OptionType string

const (
	TypeString  OptionType = "string"
	TypeBoolean OptionType = "boolean"
	TypeSelect  OptionType = "select"
)

// Option describes one connection field for host tooling. Key matches the
// config.Connection mapstructure tag.
type Option struct {
	Key         string     `json:"key"`
	Title       string     `json:"title"`
	Type        OptionType `json:"type"`
	Secret      bool       `json:"secret"`
	Required    bool       `json:"required"`
	Default     any        `json:"default,omitempty"`
	Choices     []string   `json:"choices,omitempty"`
	Description string     `json:"description,omitempty"`
}

// Options is the connection option schema, in display order.
var Options = []Option{
	{
		Key:      "backend",
		Title:    "Database",
		Type:     TypeSelect,
		Required: true,
		Default:  "oracle",
		Choices:  []string{"oracle", "postgres", "pgx", "mysql", "sqlite", "hive"},
	},
	{
		Key:         "connectString",
		Title:       "Host:Port/ServiceName",
		Type:        TypeString,
		Required:    true,
		Description: "Easy-connect target, TNS alias or driver URL",
	},
	{
		Key:      "user",
		Title:    "Username",
		Type:     TypeString,
		Required: true,
	},
	{
		Key:      "password",
		Title:    "Password",
		Type:     TypeString,
		Secret:   true,
		Required: true,
	},
	{
		Key:         "externalAuth",
		Title:       "External Authentication",
		Type:        TypeBoolean,
		Default:     false,
		Description: "Authenticate with operating system credentials instead of a password",
	},
	{
		Key:         "thickMode",
		Title:       "Thick Mode",
		Type:        TypeBoolean,
		Default:     false,
		Description: "Load the native client library from libDir",
	},
	{
		Key:         "libDir",
		Title:       "Client Library Dir",
		Type:        TypeString,
		Description: "Native client directory used in thick mode",
	},
	{
		Key:         "configDir",
		Title:       "Client Config Dir",
		Type:        TypeString,
		Description: "Directory holding tnsnames.ora; set when using TNS aliases",
	},
	{
		Key:         "readOnlyGuard",
		Title:       "Read-only Guard",
		Type:        TypeBoolean,
		Default:     false,
		Description: "Reject anything but a single SELECT or WITH statement",
	},
}
