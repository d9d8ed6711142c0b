package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/womat/mbserver"

	"github.com/fisaks/fieldhub/internal/config"
)

// CoverStateResponse is the logical register view of a simulated
// blind. The register table stores wire-order values; the REST surface
// always shows and accepts logical controller values.
type CoverStateResponse struct {
	Status   uint16 `json:"status"`
	Position uint16 `json:"position"`
	Tilt     uint16 `json:"tilt"`
	Request  uint16 `json:"request"`
}

type LightStateResponse struct {
	On         bool    `json:"on"`
	Brightness *uint16 `json:"brightness,omitempty"`
}

func StartRestAPI() error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /device/{busId}/{deviceName}", getDeviceStateHandler)

	mux.HandleFunc("PUT /device/{busId}/{deviceName}/register/{addr}", setRegisterHandler)
	mux.HandleFunc("GET /device/{busId}/{deviceName}/register/{addr}", getRegisterHandler)

	mux.HandleFunc("PUT /device/{busId}/{deviceName}/coil/{addr}", setCoilHandler)
	mux.HandleFunc("POST /device/{busId}/{deviceName}/coil/{addr}/toggle", toggleCoilHandler)

	log.Println("RTU simulator REST API listening on :8080")
	return http.ListenAndServe(":8080", mux)
}

/* ------------------------ helpers: json & errors ------------------------ */

func readJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseAddr(w http.ResponseWriter, s string) (uint16, bool) {
	i, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid address")
		return 0, false
	}
	return uint16(i), true
}

/* ----------------------- device lookup ------------------- */

func getSimAndDevice(w http.ResponseWriter, busId, deviceName string) (*mbserver.Device, *SimDevice, bool) {
	simulatorsMu.RLock()
	sim, ok := simulators[busId]
	simulatorsMu.RUnlock()
	if !ok {
		fail(w, http.StatusNotFound, "bus not found")
		return nil, nil, false
	}

	simDevicesMu.RLock()
	sd, ok := simDevices[deviceName]
	simDevicesMu.RUnlock()
	if !ok {
		fail(w, http.StatusNotFound, "device not configured")
		return nil, nil, false
	}

	dev, ok := sim.Devices[sd.UnitID]
	if !ok {
		fail(w, http.StatusNotFound, "unit not found on bus")
		return nil, nil, false
	}
	return &dev, sd, true
}

/* ------------------------------ handlers -------------------------------- */

func getDeviceStateHandler(w http.ResponseWriter, r *http.Request) {
	dev, sd, ok := getSimAndDevice(w, r.PathValue("busId"), r.PathValue("deviceName"))
	if !ok {
		return
	}

	switch sd.Kind {
	case config.KindCover:
		writeJSON(w, http.StatusOK, CoverStateResponse{
			Status:   le(dev.HoldingRegisters[sd.StatusAddr]),
			Position: le(dev.HoldingRegisters[sd.StatusAddr+1]),
			Tilt:     le(dev.HoldingRegisters[sd.StatusAddr+2]),
			Request:  le(dev.HoldingRegisters[sd.RequestAddr]),
		})
	case config.KindLight, config.KindSwitch:
		out := LightStateResponse{On: dev.Coils[sd.StateCoil] != 0}
		if sd.BrightnessAddr != nil {
			v := le(dev.HoldingRegisters[*sd.BrightnessAddr])
			out.Brightness = &v
		}
		writeJSON(w, http.StatusOK, out)
	default:
		fail(w, http.StatusBadRequest, "unsupported kind "+sd.Kind)
	}
}

func getRegisterHandler(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddr(w, r.PathValue("addr"))
	if !ok {
		return
	}
	dev, _, ok := getSimAndDevice(w, r.PathValue("busId"), r.PathValue("deviceName"))
	if !ok {
		return
	}
	if int(addr) >= len(dev.HoldingRegisters) {
		fail(w, http.StatusBadRequest, "register address out of range")
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint16{"value": le(dev.HoldingRegisters[addr])})
}

func setRegisterHandler(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddr(w, r.PathValue("addr"))
	if !ok {
		return
	}
	dev, _, ok := getSimAndDevice(w, r.PathValue("busId"), r.PathValue("deviceName"))
	if !ok {
		return
	}
	if int(addr) >= len(dev.HoldingRegisters) {
		fail(w, http.StatusBadRequest, "register address out of range")
		return
	}

	var payload struct {
		Value uint16 `json:"value"`
	}
	if err := readJSON(r, &payload); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}
	dev.HoldingRegisters[addr] = le(payload.Value)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func setCoilHandler(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddr(w, r.PathValue("addr"))
	if !ok {
		return
	}
	dev, _, ok := getSimAndDevice(w, r.PathValue("busId"), r.PathValue("deviceName"))
	if !ok {
		return
	}
	if int(addr) >= len(dev.Coils) {
		fail(w, http.StatusBadRequest, "coil address out of range")
		return
	}

	var payload struct {
		Value uint8 `json:"value"`
	}
	if err := readJSON(r, &payload); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}
	dev.Coils[addr] = payload.Value
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toggleCoilHandler(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddr(w, r.PathValue("addr"))
	if !ok {
		return
	}
	dev, _, ok := getSimAndDevice(w, r.PathValue("busId"), r.PathValue("deviceName"))
	if !ok {
		return
	}
	if int(addr) >= len(dev.Coils) {
		fail(w, http.StatusBadRequest, "coil address out of range")
		return
	}

	dev.Coils[addr] ^= 1
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "value": dev.Coils[addr]})
}
