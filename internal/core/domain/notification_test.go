package domain

import "testing"

func TestMapGatewayStatus(t *testing.T) {
	cases := []struct {
		txStatus    string
		fraudStatus string
		want        OrderStatus
		ok          bool
	}{
		{"settlement", "", OrderStatusPaid, true},
		{"capture", "", OrderStatusPaid, true},
		{"capture", "accept", OrderStatusPaid, true},
		{"capture", "challenge", OrderStatusChallenge, true},
		{"capture", "deny", "", false},
		{"pending", "", OrderStatusPending, true},
		{"deny", "", OrderStatusDenied, true},
		{"cancel", "", OrderStatusCancelled, true},
		{"expire", "", OrderStatusExpired, true},
		{"challenge", "", OrderStatusChallenge, true},
		{"refund", "", "", false},
		{"", "", "", false},
	}

	for _, tc := range cases {
		got, ok := MapGatewayStatus(tc.txStatus, tc.fraudStatus)
		if ok != tc.ok || got != tc.want {
			t.Errorf("MapGatewayStatus(%q, %q) = (%q, %v), want (%q, %v)",
				tc.txStatus, tc.fraudStatus, got, ok, tc.want, tc.ok)
		}
	}
}
