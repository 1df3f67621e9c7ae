// internal/api/handlers.go
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/tamzrod/mra4-gateway/internal/alarm"
	"github.com/tamzrod/mra4-gateway/internal/control"
	"github.com/tamzrod/mra4-gateway/internal/device"
	"github.com/tamzrod/mra4-gateway/internal/logbuf"
	"github.com/tamzrod/mra4-gateway/internal/status"
)

// ---- request / response bodies ----

type levelRequest struct {
	On *bool `json:"on" binding:"required"`
}

type pulseRequest struct {
	DurationMs int `json:"duration_ms" binding:"min=0,max=10000"`
}

type tripRequest struct {
	COT uint16 `json:"cot"`
}

type modeRequest struct {
	Mode device.Mode `json:"mode" binding:"required,oneof=real simulator"`
}

type snapshotResponse struct {
	Reading    device.Reading   `json:"reading"`
	Evaluation alarm.Evaluation `json:"evaluation"`
	Status     status.Snapshot  `json:"status"`
	HealthName string           `json:"health_name"`
}

type statusResponse struct {
	status.Snapshot
	HealthName     string `json:"health_name"`
	Mode           string `json:"mode"`
	CouplingLocked bool   `json:"coupling_locked"`
	PulsesInFlight int64  `json:"pulses_in_flight"`
}

func errorBody(err error) gin.H {
	return gin.H{"error": err.Error()}
}

// ---- reads ----

func getSnapshot(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, ok := d.History.Latest()
		if !ok {
			c.JSON(http.StatusServiceUnavailable, errorBody(errors.New("no reading yet")))
			return
		}
		st := d.Status.Snapshot()
		c.JSON(http.StatusOK, snapshotResponse{
			Reading:    r,
			Evaluation: d.Evaluator.Evaluate(r),
			Status:     st,
			HealthName: st.HealthName(),
		})
	}
}

func getHistory(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		items := d.History.Snapshot()

		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				c.JSON(http.StatusBadRequest, errorBody(errors.New("limit must be a positive integer")))
				return
			}
			if n < len(items) {
				items = items[len(items)-n:]
			}
		}
		c.JSON(http.StatusOK, gin.H{"capacity": d.History.Cap(), "readings": items})
	}
}

func getStatus(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := d.Status.Snapshot()
		_, armed := d.Control.Remaining()
		c.JSON(http.StatusOK, statusResponse{
			Snapshot:       st,
			HealthName:     st.HealthName(),
			Mode:           string(d.Poller.Device().Mode()),
			CouplingLocked: !armed,
			PulsesInFlight: d.Control.InFlight(),
		})
	}
}

func getCOT() gin.HandlerFunc {
	return func(c *gin.Context) {
		code, err := strconv.ParseUint(c.Param("code"), 10, 16)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody(errors.New("code must be 0..65535")))
			return
		}
		entry, ok := device.LookupCOT(uint16(code))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"code": code, "name": device.DescribeCOT(uint16(code))})
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

func getLogs(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		debug, err := strconv.ParseBool(c.DefaultQuery("debug", "false"))
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody(errors.New("debug must be a boolean")))
			return
		}
		limit := 0
		if v := c.Query("limit"); v != "" {
			limit, err = strconv.Atoi(v)
			if err != nil || limit < 1 {
				c.JSON(http.StatusBadRequest, errorBody(errors.New("limit must be a positive integer")))
				return
			}
		}

		entries := []logbuf.Entry{}
		if d.Logs != nil {
			entries = d.Logs.Logs(debug, limit)
		}
		c.JSON(http.StatusOK, gin.H{"debug": debug, "entries": entries})
	}
}

// ---- commands ----

func unlockCoupling(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		until := d.Control.Unlock()
		left, _ := d.Control.Remaining()
		body := gin.H{"remaining_s": int(left.Seconds())}
		if !until.IsZero() {
			body["unlocked_until"] = until
		}
		c.JSON(http.StatusOK, body)
	}
}

func lockCoupling(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		d.Control.Lock()
		c.Status(http.StatusNoContent)
	}
}

func pulseCoupling(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pulseRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				klog.V(2).InfoS("Failed to parse pulse request", "err", err)
				c.JSON(http.StatusBadRequest, errorBody(err))
				return
			}
		}

		id, err := d.Control.CouplingPulse(time.Duration(req.DurationMs) * time.Millisecond)
		if errors.Is(err, control.ErrLocked) {
			c.JSON(http.StatusLocked, errorBody(err))
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, errorBody(err))
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"job_id": id})
	}
}

func writeCoupling(d Deps) gin.HandlerFunc {
	return writeLevel(d, device.Device.WriteCouplingSwitch)
}

func writeFaultRecording(d Deps) gin.HandlerFunc {
	return writeLevel(d, device.Device.WriteFaultRecordingTrigger)
}

func writeLevel(d Deps, write func(device.Device, bool) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req levelRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorBody(err))
			return
		}
		if err := write(d.Poller.Device(), *req.On); err != nil {
			c.JSON(http.StatusBadGateway, errorBody(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"on": *req.On})
	}
}

func acknowledge(d Deps, ack func(device.Device) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := ack(d.Poller.Device()); err != nil {
			c.JSON(http.StatusBadGateway, errorBody(err))
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func simulateTrip(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tripper, ok := d.Poller.Device().(device.Tripper)
		if !ok {
			c.JSON(http.StatusConflict, errorBody(errors.New("trip simulation needs simulator mode")))
			return
		}

		var req tripRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, errorBody(err))
				return
			}
		}
		code := req.COT
		if code == 0 {
			code = device.DefaultTripCOT
		}
		tripper.SimulateTrip(code)
		c.JSON(http.StatusOK, gin.H{"cot": code, "name": device.DescribeCOT(code)})
	}
}

func switchMode(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req modeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorBody(err))
			return
		}
		if err := d.Poller.RequestMode(req.Mode); err != nil {
			c.JSON(http.StatusBadRequest, errorBody(err))
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"mode": req.Mode})
	}
}
