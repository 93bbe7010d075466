package client

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "skedit/pkg/errors"
	"skedit/pkg/model"
)

// APIClient speaks the locks service REST surface as one user.
type APIClient struct {
	http *HttpClient
}

func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{http: NewHttpClient(baseURL).WithToken(token)}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

// decode unwraps the response envelope into out. Failure envelopes come back
// as *apperrors.AppError carrying the server's code and message.
func decode(resp *Response, out any) error {
	var env envelope
	if err := resp.DecodeJSON(&env); err != nil {
		return fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	if !env.Success {
		return apperrors.New(env.Code, env.Message, resp.StatusCode)
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

func lockPath(resourceID string) string {
	return "/api/v1/locks/" + resourceID
}

// LockStatus returns the live lock on resourceID, or nil when there is none.
func (c *APIClient) LockStatus(resourceID string) (*model.LockView, error) {
	resp, err := c.http.GET(lockPath(resourceID))
	if err != nil {
		return nil, err
	}
	var view *model.LockView
	err = decode(resp, &view)
	return view, err
}

func (c *APIClient) Acquire(resourceID string) (*model.LockView, error) {
	resp, err := c.http.POST(lockPath(resourceID)+"/acquire", nil)
	if err != nil {
		return nil, err
	}
	var view model.LockView
	if err := decode(resp, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *APIClient) Release(resourceID string) error {
	resp, err := c.http.DELETE(lockPath(resourceID))
	if err != nil {
		return err
	}
	return decode(resp, nil)
}

func (c *APIClient) ForceAcquire(resourceID string) (*model.Takeover, error) {
	resp, err := c.http.POST(lockPath(resourceID)+"/force", nil)
	if err != nil {
		return nil, err
	}
	var takeover model.Takeover
	if err := decode(resp, &takeover); err != nil {
		return nil, err
	}
	return &takeover, nil
}

func (c *APIClient) UserLocks(userID string) ([]*model.Lock, error) {
	resp, err := c.http.GET("/api/v1/users/" + userID + "/locks")
	if err != nil {
		return nil, err
	}
	var locks []*model.Lock
	err = decode(resp, &locks)
	return locks, err
}

// ReleaseUserLocks force releases every lock userID holds and returns how
// many were released.
func (c *APIClient) ReleaseUserLocks(userID string) (int, error) {
	resp, err := c.http.DELETE("/api/v1/users/" + userID + "/locks")
	if err != nil {
		return 0, err
	}
	var out struct {
		Released int `json:"released"`
	}
	err = decode(resp, &out)
	return out.Released, err
}

func (c *APIClient) Appointment(id string) (*model.AppointmentDetails, error) {
	resp, err := c.http.GET("/api/v1/appointments/" + id)
	if err != nil {
		return nil, err
	}
	var details model.AppointmentDetails
	if err := decode(resp, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

func (c *APIClient) UpdateAppointment(id string, update *model.AppointmentUpdate) (*model.Appointment, error) {
	resp, err := c.http.PATCH("/api/v1/appointments/"+id, update)
	if err != nil {
		return nil, err
	}
	var appt model.Appointment
	if err := decode(resp, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

func (c *APIClient) WaitForHealthy(maxWait time.Duration) error {
	return c.http.WaitForHealthy(maxWait)
}
