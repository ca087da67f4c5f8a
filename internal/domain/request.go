package domain

import "errors"

// RequestStatus — состояние заявки сотрудника (enum "status" в Postgres).
type RequestStatus string

const (
	StatusPending          RequestStatus = "Pending"
	StatusApproved         RequestStatus = "Approved"
	StatusRejected         RequestStatus = "Rejected"
	StatusWithdrawn        RequestStatus = "Withdrawn"
	StatusWithdrawPending  RequestStatus = "Withdraw Pending"
	StatusWithdrawRejected RequestStatus = "Withdraw Rejected"
)

var ErrUnknownStatus = errors.New("unknown request status")

// Validate проверяет, что значение входит в enum удаленной схемы
func (s RequestStatus) Validate() error {
	switch s {
	case StatusPending, StatusApproved, StatusRejected,
		StatusWithdrawn, StatusWithdrawPending, StatusWithdrawRejected:
		return nil
	}
	return ErrUnknownStatus
}

// Employee — строка таблицы Employee.
type Employee struct {
	StaffID          int64      `json:"Staff_ID"`
	FirstName        string     `json:"Staff_FName"`
	LastName         string     `json:"Staff_LName"`
	Dept             string     `json:"Dept"`
	Position         string     `json:"Position"`
	Country          string     `json:"Country"`
	Email            string     `json:"Email"`
	ReportingManager int64      `json:"Reporting_Manager"`
	Role             int        `json:"Role"`
	CreatedAt        *Timestamp `json:"created_at,omitempty"`
	UpdatedAt        *Timestamp `json:"updated_at,omitempty"`
}

// RequestLog — запись истории переходов заявки.
type RequestLog struct {
	LogID         int64         `json:"Log_ID"`
	RequestID     int64         `json:"Request_ID"`
	PreviousState RequestStatus `json:"Previous_State"`
	NewState      RequestStatus `json:"New_State"`
	EmployeeID    int64         `json:"Employee_ID"`
	Date          string        `json:"Date"`    // YYYY-MM-DD
	Remarks       *string       `json:"Remarks"` // NULL допустим
}

// Request — строка таблицы Request вместе со встроенными связями.
// Employee приходит через внешний ключ Request_Approver_ID_fkey, RequestLog — все записи истории.
type Request struct {
	RequestID     int64         `json:"Request_ID"`
	RequestorID   int64         `json:"Requestor_ID"`
	ApproverID    int64         `json:"Approver_ID"`
	Status        RequestStatus `json:"Status"`
	DateRequested string        `json:"Date_Requested"`
	RequestBatch  *int64        `json:"Request_Batch"`
	DateOfRequest string        `json:"Date_Of_Request"`
	Duration      string        `json:"Duration"`
	CreatedAt     *Timestamp    `json:"created_at,omitempty"`
	UpdatedAt     *Timestamp    `json:"updated_at,omitempty"`

	Approver *Employee    `json:"Employee,omitempty"`
	Logs     []RequestLog `json:"RequestLog,omitempty"`
}
