package kafka

import (
	"testing"

	"tablesync/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeChange(t *testing.T) {
	tests := []struct {
		name          string
		value         string
		expectedError string
		check         func(t *testing.T, c domain.OrderChange)
	}{
		{
			name:  "update with both rows",
			value: `{"type":"UPDATE","old":{"id":"o-1","order_status":"ready"},"new":{"id":"o-1","restaurant_id":"r-1","order_status":"cancelled","cancellation_reason":"guest left"}}`,
			check: func(t *testing.T, c domain.OrderChange) {
				assert.Equal(t, domain.ChangeUpdate, c.Type)
				assert.Equal(t, "r-1", c.RestaurantID)
				assert.Equal(t, domain.OrderReady, c.Old.OrderStatus)
				assert.Equal(t, "guest left", c.New.CancellationReason)
			},
		},
		{
			name:  "insert carries split details",
			value: `{"type":"INSERT","restaurant_id":"r-2","new":{"id":"o-2","split_details":{"cash_amount":200,"online_amount":220,"note":"x"}}}`,
			check: func(t *testing.T, c domain.OrderChange) {
				require.NotNil(t, c.New.SplitDetails)
				assert.Equal(t, int64(220), c.New.SplitDetails.OnlineAmount)
				assert.Equal(t, "r-2", c.RestaurantID)
			},
		},
		{
			name:          "update missing old row",
			value:         `{"type":"UPDATE","new":{"id":"o-1"}}`,
			expectedError: "without old and new rows",
		},
		{
			name:          "unknown type",
			value:         `{"type":"TRUNCATE"}`,
			expectedError: "unknown change type",
		},
		{
			name:          "not json",
			value:         `nope`,
			expectedError: "decode order change",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := DecodeChange([]byte(tt.value))
			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}
			require.NoError(t, err)
			tt.check(t, c)
		})
	}
}
