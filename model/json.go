package model

import "github.com/goccy/go-json"

func (rs NodeResults) MarshalJSON() ([]byte, error) {
	return json.Marshal(rs.All())
}

func (rs *NodeResults) UnmarshalJSON(b []byte) error {
	var list []NodeResult
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*rs = NodeResults{}
	for _, r := range list {
		rs.Set(r)
	}
	return nil
}

// MarshalJSON writes errorMessage as null when the run has no error.
func (r ExecutionResult) MarshalJSON() ([]byte, error) {
	type plain ExecutionResult
	var msg *string
	if r.ErrorMessage != "" {
		msg = &r.ErrorMessage
	}
	return json.Marshal(struct {
		plain
		ErrorMessage *string `json:"errorMessage"`
	}{plain(r), msg})
}
