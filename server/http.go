package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/udooneo/neo/hardware/gpio"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respond encodes the data and ResponseError to JSON and responds with it and
// the http code. If the encoding fails, sets an InternalServerError.
func respond(w http.ResponseWriter, data interface{}, httpCode int) {
	var resp interface{}
	if v, ok := data.(error); ok {
		r := errorResponse{Error: v.Error()}
		var gerr *gpio.Error
		if errors.As(v, &gerr) {
			r.Code = string(gerr.Code)
		}
		resp = r
	} else {
		resp = data
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)

	if resp != nil {
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// statusOf maps an engine error onto an http status.
func statusOf(err error) int {
	switch gpio.CodeOf(err) {
	case gpio.OK:
		return http.StatusOK
	case gpio.ErrPin, gpio.ErrDir, gpio.ErrDuty, gpio.ErrPeriod, gpio.ErrInterrupt:
		return http.StatusUnprocessableEntity
	case gpio.ErrUnusable, gpio.ErrExport, gpio.ErrUnusableExport:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondEngine responds with an engine error, or with data when err is nil.
func respondEngine(w http.ResponseWriter, data interface{}, err error) {
	if err != nil {
		respond(w, err, statusOf(err))
		return
	}

	if data == nil {
		respond(w, nil, http.StatusNoContent)
		return
	}

	respond(w, data, http.StatusOK)
}

func pinParam(req *http.Request) (int, error) {
	params := httprouter.ParamsFromContext(req.Context())

	pin, err := strconv.Atoi(params.ByName("pin"))
	if err != nil {
		return 0, errors.New("pin must be a number")
	}

	return pin, nil
}
