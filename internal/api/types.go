package api

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrInvalidResponse = errors.New("invalid API response")

// APIError is a non-2xx response.
type APIError struct {
	Status   int
	Endpoint string
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API_ERROR_%d", e.Status)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsClientError reports whether err is a 4xx from the API. Such requests
// will not succeed on retry.
func IsClientError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500
}

// Coin is a token listing.
type Coin struct {
	Address        string `json:"address"`
	Name           string `json:"name"`
	Symbol         string `json:"symbol"`
	Description    string `json:"description"`
	Image          string `json:"image"`
	Decimals       int    `json:"decimals"`
	PackageID      string `json:"packageId"`
	ModuleName     string `json:"moduleName"`
	TypeName       string `json:"typeName"`
	FactoryAddress string `json:"factoryAddress"`
	CurveAddress   string `json:"curveAddress"`
	Creator        string `json:"creator"`
}

// FactoryRecord is one protocol deployment as served by the API.
type FactoryRecord struct {
	Alias                 string `json:"alias"`
	DisplayName           string `json:"displayName"`
	PackageName           string `json:"packageName"`
	PackageID             string `json:"packageID"`
	ConfigObjectID        string `json:"configObjectID"`
	PauseStatusObjectID   string `json:"pauseStatusObjectID"`
	PoolsObjectID         string `json:"poolsObjectID"`
	LpBurnManagerObjectID string `json:"lpBurnManagerObjectID"`
}
