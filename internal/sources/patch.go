package sources

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Patch is a partial update. Each top-level key present replaces the stored
// value; absent keys are left as they are. Keys for derived or server-owned
// fields (id, uploads, createdAt, updatedAt) are ignored.
type Patch map[string]json.RawMessage

// Apply writes the patch onto dst. A null automation clears automation, and
// a null or empty-object dateFilter clears the date filter. The rule ARN is
// never taken from the patch: dst's existing ARN is carried into the
// patched schedule.
func (p Patch) Apply(dst *Source) error {
	ruleARN := dst.RuleARN()

	for key, raw := range p {
		var err error
		switch key {
		case "name":
			dst.Name = ""
			err = decodeField(raw, &dst.Name)
		case "origin":
			dst.Origin = Origin{}
			err = decodeField(raw, &dst.Origin)
		case "format":
			dst.Format = ""
			err = decodeField(raw, &dst.Format)
		case "notificationRecipients":
			dst.NotificationRecipients = nil
			err = decodeField(raw, &dst.NotificationRecipients)
		case "automation":
			dst.Automation = nil
			err = decodeField(raw, &dst.Automation)
		case "dateFilter":
			dst.DateFilter = nil
			if !isEmptyObject(raw) {
				err = decodeField(raw, &dst.DateFilter)
			}
		default:
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidBody, key, err)
		}
	}

	if sch := dst.schedule(); sch != nil {
		sch.AWSRuleARN = ruleARN
	}

	return nil
}

func decodeField(raw json.RawMessage, dst any) error {
	if isNull(raw) {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isEmptyObject(raw json.RawMessage) bool {
	if isNull(raw) {
		return true
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return false
	}
	return len(m) == 0
}
