// internal/handler/printer_handler.go
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pos-print-bridge/internal/bluetooth"
	"pos-print-bridge/internal/model"
	"pos-print-bridge/internal/network"
	"pos-print-bridge/internal/service"
	"pos-print-bridge/internal/utils"
)

// DeviceRequest selects or connects a Bluetooth device
type DeviceRequest struct {
	ID string `json:"id"`
}

// HostRequest connects a network printer
type HostRequest struct {
	Host string `json:"host" binding:"required"`
}

// PrinterHandler exposes the printer controls of the drawer screen
type PrinterHandler struct {
	bluetooth   *bluetooth.Manager
	network     *network.Manager
	scanner     *network.Scanner
	connections *service.ConnectionService
	notifier    service.Notifier
	logger      *utils.ServiceLogger
}

// NewPrinterHandler creates a new printer handler
func NewPrinterHandler(
	bt *bluetooth.Manager,
	net *network.Manager,
	scanner *network.Scanner,
	connections *service.ConnectionService,
	notifier service.Notifier,
	logger *zap.Logger,
) *PrinterHandler {
	return &PrinterHandler{
		bluetooth:   bt,
		network:     net,
		scanner:     scanner,
		connections: connections,
		notifier:    notifier,
		logger:      utils.NewServiceLogger(logger, "printer-handler"),
	}
}

// RegisterRoutes registers printer control routes
func (h *PrinterHandler) RegisterRoutes(router *gin.RouterGroup) {
	printer := router.Group("/printer")
	{
		printer.GET("/status", h.GetStatus)
		printer.POST("/resume", h.Resume)

		bt := printer.Group("/bluetooth")
		{
			bt.POST("/discover", h.Discover)
			bt.GET("/devices", h.ListDevices)
			bt.POST("/select", h.SelectDevice)
			bt.POST("/connect", h.ConnectBluetooth)
			bt.POST("/disconnect", h.DisconnectBluetooth)
		}

		tcp := printer.Group("/network")
		{
			tcp.POST("/connect", h.ConnectNetwork)
			tcp.POST("/disconnect", h.DisconnectNetwork)
			tcp.GET("/scan", h.ScanNetwork)
		}
	}
}

// GetStatus reports both transports
// @Summary Printer status
// @Description Connection state of the Bluetooth and network printers
// @Tags Printer
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.PrinterStatus} "Status retrieved"
// @Router /printer/status [get]
func (h *PrinterHandler) GetStatus(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Printer status retrieved", h.connections.Status())
}

// Resume retries saved printers that are not connected
// @Summary Resume printer links
// @Description One reconnect attempt per saved transport that is down
// @Tags Printer
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.PrinterStatus} "Links resumed"
// @Router /printer/resume [post]
func (h *PrinterHandler) Resume(c *gin.Context) {
	status := h.connections.Resume(c.Request.Context())
	utils.SuccessResponse(c, http.StatusOK, status.Summary, status)
}

// Discover scans for Bluetooth printers
// @Summary Discover Bluetooth printers
// @Description Lists bonded devices and scans for nearby ones
// @Tags Printer
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]model.BluetoothDevice} "Discovery finished"
// @Failure 403 {object} utils.APIResponse "Scan permission denied"
// @Failure 501 {object} utils.APIResponse "Bluetooth unavailable"
// @Router /printer/bluetooth/discover [post]
func (h *PrinterHandler) Discover(c *gin.Context) {
	devices, err := h.bluetooth.Discover(c.Request.Context())
	if err != nil {
		h.logger.Warn("Bluetooth discovery failed", zap.Error(err))
		utils.ErrorResponse(c, utils.StatusForError(err), "Bluetooth discovery failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Bluetooth discovery finished", devices)
}

// ListDevices returns the known Bluetooth devices
// @Summary List Bluetooth devices
// @Tags Printer
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.BluetoothState} "Devices retrieved"
// @Router /printer/bluetooth/devices [get]
func (h *PrinterHandler) ListDevices(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Bluetooth devices retrieved", h.bluetooth.State())
}

// SelectDevice marks a device as the connect target
// @Summary Select Bluetooth device
// @Tags Printer
// @Accept json
// @Produce json
// @Param request body DeviceRequest true "Device"
// @Success 200 {object} utils.APIResponse "Device selected"
// @Failure 404 {object} utils.APIResponse "Unknown device"
// @Router /printer/bluetooth/select [post]
func (h *PrinterHandler) SelectDevice(c *gin.Context) {
	var req DeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Device id is required", err)
		return
	}

	if err := h.bluetooth.Select(req.ID); err != nil {
		utils.ErrorResponse(c, utils.StatusForError(err), "Failed to select device", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Device selected", gin.H{"id": req.ID})
}

// ConnectBluetooth connects the given or selected device
// @Summary Connect Bluetooth printer
// @Description Connects the device in the body, or the selected one when the body is empty
// @Tags Printer
// @Accept json
// @Produce json
// @Param request body DeviceRequest false "Device"
// @Success 200 {object} utils.APIResponse{data=model.BluetoothState} "Connected"
// @Failure 404 {object} utils.APIResponse "Unknown device"
// @Failure 502 {object} utils.APIResponse "Connection failed"
// @Router /printer/bluetooth/connect [post]
func (h *PrinterHandler) ConnectBluetooth(c *gin.Context) {
	var req DeviceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	if err := h.bluetooth.Connect(c.Request.Context(), req.ID); err != nil {
		h.connectFailed(c, err)
		return
	}

	h.logger.Info("Bluetooth printer connected", zap.String("address", h.bluetooth.ActiveAddress()))
	utils.SuccessResponse(c, http.StatusOK, "Bluetooth printer connected", h.bluetooth.State())
}

// DisconnectBluetooth releases the Bluetooth link
// @Summary Disconnect Bluetooth printer
// @Tags Printer
// @Produce json
// @Success 200 {object} utils.APIResponse "Disconnected"
// @Router /printer/bluetooth/disconnect [post]
func (h *PrinterHandler) DisconnectBluetooth(c *gin.Context) {
	h.bluetooth.Disconnect(c.Request.Context())
	utils.SuccessResponse(c, http.StatusOK, "Bluetooth printer disconnected", h.bluetooth.State())
}

// ConnectNetwork connects a raw TCP printer
// @Summary Connect network printer
// @Tags Printer
// @Accept json
// @Produce json
// @Param request body HostRequest true "Printer host"
// @Success 200 {object} utils.APIResponse{data=model.NetworkState} "Connected"
// @Failure 400 {object} utils.APIResponse "Host missing"
// @Failure 502 {object} utils.APIResponse "Connection failed"
// @Router /printer/network/connect [post]
func (h *PrinterHandler) ConnectNetwork(c *gin.Context) {
	var req HostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Printer host is required", err)
		return
	}

	if err := h.network.Connect(c.Request.Context(), req.Host); err != nil {
		h.connectFailed(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Network printer connected", h.network.State())
}

// DisconnectNetwork closes the printer socket
// @Summary Disconnect network printer
// @Tags Printer
// @Produce json
// @Success 200 {object} utils.APIResponse "Disconnected"
// @Router /printer/network/disconnect [post]
func (h *PrinterHandler) DisconnectNetwork(c *gin.Context) {
	h.network.Disconnect()
	utils.SuccessResponse(c, http.StatusOK, "Network printer disconnected", h.network.State())
}

// ScanNetwork probes the local subnet for raw printing ports
// @Summary Scan for network printers
// @Tags Printer
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{printers_found=int,printers=[]model.NetworkPrinter}} "Scan finished"
// @Failure 500 {object} utils.APIResponse "Scan failed"
// @Router /printer/network/scan [get]
func (h *PrinterHandler) ScanNetwork(c *gin.Context) {
	printers, err := h.scanner.Scan(c.Request.Context())
	if err != nil {
		h.logger.Error("Network scan failed", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Network scan failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Network scan finished", gin.H{
		"printers_found": len(printers),
		"printers":       printers,
	})
}

func (h *PrinterHandler) connectFailed(c *gin.Context, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, model.ErrDeviceNotFound) {
		status = http.StatusNotFound
	} else if h.notifier != nil {
		h.notifier.Notify(c.Request.Context(), service.TitleConnectFailed, err.Error())
	}

	h.logger.Warn("Printer connection failed", zap.Error(err))
	utils.ErrorResponse(c, status, "Printer connection failed", err)
}
