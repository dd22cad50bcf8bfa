package indexer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type vote struct {
	ID            string       `json:"id"`
	Transaction   string       `json:"transaction"`
	BlockNumber   flexInt      `json:"blockNumber"`
	ProjectID     string       `json:"projectId"`
	ApplicationID flexString   `json:"applicationId"`
	RoundID       string       `json:"roundId"`
	Voter         string       `json:"voter"`
	GrantAddress  string       `json:"grantAddress"`
	Token         string       `json:"token"`
	Amount        flexString   `json:"amount"`
	AmountUSD     *json.Number `json:"amountUSD"`
}

type application struct {
	ID                 flexString      `json:"id"`
	ProjectID          string          `json:"projectId"`
	Status             string          `json:"status"`
	AmountUSD          decimal.Decimal `json:"amountUSD"`
	Votes              flexInt         `json:"votes"`
	UniqueContributors flexInt         `json:"uniqueContributors"`
	Metadata           struct {
		Application struct {
			Recipient string `json:"recipient"`
			Project   struct {
				Title       string `json:"title"`
				Description string `json:"description"`
			} `json:"project"`
		} `json:"application"`
	} `json:"metadata"`
}

type round struct {
	ID                 string          `json:"id"`
	AmountUSD          decimal.Decimal `json:"amountUSD"`
	Votes              flexInt         `json:"votes"`
	UniqueContributors flexInt         `json:"uniqueContributors"`
	MatchAmountUSD     decimal.Decimal `json:"matchAmountUSD"`
	RoundStartTime     flexTime        `json:"roundStartTime"`
	RoundEndTime       flexTime        `json:"roundEndTime"`
	RoundMetadata      struct {
		Name string `json:"name"`
	} `json:"roundMetadata"`
}

type passport struct {
	Address  string `json:"address"`
	Status   string `json:"status"`
	Evidence *struct {
		RawScore flexString `json:"rawScore"`
	} `json:"evidence"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexInt accepts an integer as a JSON number, a decimal string or a 0x
// hex string.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	v := strings.TrimSpace(string(s))
	if v == "" {
		*f = 0
		return nil
	}
	var (
		n   int64
		err error
	)
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		n, err = strconv.ParseInt(v[2:], 16, 64)
	} else {
		n, err = strconv.ParseInt(v, 10, 64)
	}
	if err != nil {
		return fmt.Errorf("parse integer %q: %w", v, err)
	}
	*f = flexInt(n)
	return nil
}

// flexTime accepts unix seconds (number or string) or an RFC 3339 string.
type flexTime struct {
	Time *time.Time
}

func (f *flexTime) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	v := strings.TrimSpace(string(s))
	if v == "" {
		f.Time = nil
		return nil
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		ts := time.Unix(secs, 0).UTC()
		f.Time = &ts
		return nil
	}
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return fmt.Errorf("parse time %q: %w", v, err)
	}
	ts = ts.UTC()
	f.Time = &ts
	return nil
}
