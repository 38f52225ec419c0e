// Copyright 2026 The Congregreat Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import "log/slog"

// Attribute keys shared by request, access and audit logs.
const (
	KeyRequestID  = "request_id"
	KeyUserID     = "user_id"
	KeyEntity     = "entity"
	KeyAction     = "action"
	KeyResourceID = "resource_id"
	KeyComponent  = "component"
)

// Request attributes
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

func Method(method string) slog.Attr {
	return slog.String("method", method)
}

func Path(path string) slog.Attr {
	return slog.String("path", path)
}

func Route(pattern string) slog.Attr {
	return slog.String("route", pattern)
}

func RemoteAddr(addr string) slog.Attr {
	return slog.String("remote_addr", addr)
}

func UserAgent(ua string) slog.Attr {
	return slog.String("user_agent", ua)
}

func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}

func Duration(ms int64) slog.Attr {
	return slog.Int64("duration_ms", ms)
}

// Identity attributes
func UserID(id string) slog.Attr {
	return slog.String(KeyUserID, id)
}

// Access control attributes
func Entity(entity string) slog.Attr {
	return slog.String(KeyEntity, entity)
}

func Action(action string) slog.Attr {
	return slog.String(KeyAction, action)
}

func ResourceID(id string) slog.Attr {
	return slog.String(KeyResourceID, id)
}

// Error attributes
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Component attributes
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

func Operation(op string) slog.Attr {
	return slog.String("operation", op)
}
