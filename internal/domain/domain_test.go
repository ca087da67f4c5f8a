package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_CleanSelect(t *testing.T) {
	assert.Equal(t, "*,Employee!Request_Approver_ID_fkey(*),RequestLog(*)", RequestsWithApproverAndLogs.CleanSelect())
	assert.Equal(t, `id,"full name"`, Query{Select: ` id , "full name" `}.CleanSelect())
	assert.Equal(t, "Request?select=*,Employee!Request_Approver_ID_fkey(*),RequestLog(*)", RequestsWithApproverAndLogs.String())
}

func TestResponse_OK(t *testing.T) {
	tests := []struct {
		name string
		resp *Response
		want bool
	}{
		{"nil", nil, false},
		{"200 empty", &Response{Status: 200, Data: []json.RawMessage{}}, true},
		{"206 partial", &Response{Status: 206}, true},
		{"error field set", &Response{Status: 200, Error: &APIError{Message: "x"}}, false},
		{"4xx", &Response{Status: 404}, false},
		{"no status", &Response{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.resp.OK())
		})
	}
}

func TestResponse_Requests(t *testing.T) {
	resp := &Response{Status: 200, Data: []json.RawMessage{json.RawMessage(`{
		"Request_ID": 5, "Requestor_ID": 140001, "Approver_ID": 140894,
		"Status": "Withdraw Pending", "Date_Requested": "2024-09-20",
		"Request_Batch": null, "Date_Of_Request": "2024-10-01", "Duration": "AM",
		"created_at": "2024-09-23T15:44:39", "updated_at": "2024-09-25T08:01:02.123456",
		"Employee": {"Staff_ID": 140894, "Staff_FName": "Rahim", "Staff_LName": "Khalid", "Role": 3,
			"created_at": "2024-09-01T00:00:00", "updated_at": null},
		"RequestLog": [
			{"Log_ID": 1, "Request_ID": 5, "Previous_State": "Pending", "New_State": "Approved", "Employee_ID": 140894, "Date": "2024-09-21", "Remarks": null},
			{"Log_ID": 2, "Request_ID": 5, "Previous_State": "Approved", "New_State": "Withdraw Pending", "Employee_ID": 140001, "Date": "2024-09-25", "Remarks": "trip cancelled"}
		]
	}`)}}

	reqs, err := resp.Requests()

	require.NoError(t, err)
	require.Len(t, reqs, 1)
	r := reqs[0]
	assert.Equal(t, StatusWithdrawPending, r.Status)
	assert.NoError(t, r.Status.Validate())
	assert.Nil(t, r.RequestBatch)
	require.NotNil(t, r.Approver)
	assert.Equal(t, int64(140894), r.Approver.StaffID)
	assert.Equal(t, r.ApproverID, r.Approver.StaffID)
	require.Len(t, r.Logs, 2)
	assert.Nil(t, r.Logs[0].Remarks)
	require.NotNil(t, r.Logs[1].Remarks)
	assert.Equal(t, "trip cancelled", *r.Logs[1].Remarks)
	require.NotNil(t, r.CreatedAt)
	assert.Equal(t, time.Date(2024, 9, 23, 15, 44, 39, 0, time.UTC), r.CreatedAt.Time)
	require.NotNil(t, r.UpdatedAt)
	assert.Equal(t, time.Date(2024, 9, 25, 8, 1, 2, 123456000, time.UTC), r.UpdatedAt.Time)
	require.NotNil(t, r.Approver.CreatedAt)
	assert.Nil(t, r.Approver.UpdatedAt)
}

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	want := time.Date(2024, 9, 23, 15, 44, 39, 0, time.UTC)
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"without zone", `"2024-09-23T15:44:39"`, want},
		{"fraction without zone", `"2024-09-23T15:44:39.5"`, want.Add(500 * time.Millisecond)},
		{"rfc3339", `"2024-09-23T15:44:39Z"`, want},
		{"offset", `"2024-09-23T18:44:39+03:00"`, want},
		{"postgres text", `"2024-09-23 15:44:39+00"`, want},
		{"space without zone", `"2024-09-23 15:44:39"`, want},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ts))
			assert.True(t, tt.want.Equal(ts.Time), "got %s", ts.Time)
		})
	}

	t.Run("garbage", func(t *testing.T) {
		var ts Timestamp
		assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
		assert.Error(t, json.Unmarshal([]byte(`42`), &ts))
	})
}

func TestResponse_RequestsBadRow(t *testing.T) {
	resp := &Response{Status: 200, Data: []json.RawMessage{json.RawMessage(`{"Request_ID":"x"}`)}}

	_, err := resp.Requests()

	assert.Error(t, err)
}

func TestRequestStatus_Validate(t *testing.T) {
	assert.NoError(t, StatusPending.Validate())
	assert.NoError(t, StatusWithdrawRejected.Validate())
	assert.ErrorIs(t, RequestStatus("Cancelled").Validate(), ErrUnknownStatus)
}

func TestAPIError_Error(t *testing.T) {
	assert.Equal(t, "PGRST116: no rows", (&APIError{Code: "PGRST116", Message: "no rows"}).Error())
	assert.Equal(t, "no rows", (&APIError{Message: "no rows"}).Error())
}
