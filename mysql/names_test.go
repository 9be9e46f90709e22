package mysql

import "testing"

func TestSanitizeTableName(t *testing.T) {
	valid := []string{"sms_queue", "schema.sms_queue", "SMS_QUEUE_1"}
	for _, name := range valid {
		if _, err := sanitizeTableName(name); err != nil {
			t.Fatalf("expected valid name %q: %v", name, err)
		}
	}

	invalid := []string{"", "sms;drop", "sms-queue", "schema..sms_queue", "schema.sms_queue;"}
	for _, name := range invalid {
		if _, err := sanitizeTableName(name); err == nil {
			t.Fatalf("expected invalid name %q", name)
		}
	}
}
