// Package respond writes the JSON response envelope used by all handlers.
package respond

import (
	"encoding/json"
	"net/http"
)

type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func write(w http.ResponseWriter, code int, r response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(r)
}

// OK writes a 200 response with the given data.
func OK(w http.ResponseWriter, data interface{}) {
	write(w, http.StatusOK, response{Success: true, Data: data})
}

// Created writes a 201 response with the given data.
func Created(w http.ResponseWriter, data interface{}) {
	write(w, http.StatusCreated, response{Success: true, Data: data})
}

// Fail writes an error response with the given status code.
func Fail(w http.ResponseWriter, code int, err error) {
	write(w, code, response{Success: false, Error: err.Error()})
}
