package models

import "strings"

// TeamConfig is the configuration pushed by the host application. It is
// loaded as an immutable snapshot: a query works against one snapshot for
// its whole lifetime, and reconfiguration swaps the snapshot wholesale.
type TeamConfig struct {
	Member     string                       `json:"member"`
	Teams      map[string]TeamCredentials   `json:"teams"`
	CTeams     map[string]TeamCustomization `json:"cTeams"`
	MessageURL string                       `json:"messageUrl"`
	PushURL    string                       `json:"pushUrl"`
	Token      string                       `json:"token"`
	UUID       string                       `json:"uuid"`
	Timeout    int                          `json:"timeout"`  // seconds
	Accuracy   int                          `json:"accuracy"` // meters
}

// TeamCredentials carries the relay identity of one team, keyed by team id.
type TeamCredentials struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Secret   string `json:"s"`
	Member   string `json:"member"`
}

// TeamCustomization carries per-team presentation and access-window fields,
// keyed by team display name.
type TeamCustomization struct {
	Icon       string `json:"icon"`
	TrackerOff string `json:"trackerOff"`
	StartDate  int64  `json:"startDate"` // epoch millis, 0 = unset
	EndDate    int64  `json:"endDate"`   // epoch millis, 0 = unset
	StartTime  int    `json:"startTime"` // minute of day
	EndTime    int    `json:"endTime"`   // minute of day
	Repeat     string `json:"repeat"`    // weekday digits 0-6, Sunday=0
}

// AccessWindow restricts when location queries are answered. A zero window
// never blocks.
type AccessWindow struct {
	StartDate   int64
	EndDate     int64
	StartMinute int
	EndMinute   int
	Repeat      string
}

// IsZero reports whether no scheduling field is set.
func (w AccessWindow) IsZero() bool {
	return w.StartDate == 0 && w.EndDate == 0 && w.Repeat == ""
}

// TeamRule is the resolved per-team view a single query works with. The
// shared secret and password travel only in transport headers, never in
// message bodies or logs.
type TeamRule struct {
	ID         string
	Name       string
	Password   string
	Host       string
	Secret     string
	Icon       string
	TrackerOff string
	Window     AccessWindow
}

// Rule resolves a team id against the snapshot. The second return is false
// for teams absent from the configuration.
func (c *TeamConfig) Rule(teamID string) (TeamRule, bool) {
	creds, ok := c.Teams[teamID]
	if !ok || creds.Name == "" {
		return TeamRule{}, false
	}
	rule := TeamRule{
		ID:       teamID,
		Name:     creds.Name,
		Password: creds.Password,
		Host:     creds.Host,
		Secret:   creds.Secret,
	}
	if custom, ok := c.CTeams[creds.Name]; ok {
		rule.Icon = custom.Icon
		rule.TrackerOff = custom.TrackerOff
		rule.Window = AccessWindow{
			StartDate:   custom.StartDate,
			EndDate:     custom.EndDate,
			StartMinute: custom.StartTime,
			EndMinute:   custom.EndTime,
			Repeat:      custom.Repeat,
		}
	}
	return rule, true
}

// ExpandHost substitutes the {host} placeholder in a URL template. The
// query's host takes precedence over the team's.
func ExpandHost(urlTemplate, teamHost, queryHost string) string {
	host := teamHost
	if queryHost != "" {
		host = queryHost
	}
	return strings.ReplaceAll(urlTemplate, "{host}", host)
}
