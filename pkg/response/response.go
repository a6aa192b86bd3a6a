package response

import (
	"encoding/json"
	"net/http"
)

type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, APIResponse{Status: "success", Data: data})
}

// Message is a success response that carries only text, used by the
// pairing commands whose result arrives later on the status stream.
func Message(w http.ResponseWriter, status int, msg string) {
	write(w, status, APIResponse{Status: "success", Message: msg})
}

func Error(w http.ResponseWriter, status int, msg string) {
	write(w, status, APIResponse{Status: "error", Message: msg})
}

func write(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
