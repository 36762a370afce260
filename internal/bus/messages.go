package bus

// Message names crossing the host/surface boundary. The surface consumes
// the Msg* requests and Push* notifications; Cmd* pushes travel the other
// way, from host accelerators and menu items to the surface.
const (
	// Surface -> host requests.
	MsgConfigLoad        = "config-load"
	MsgConfigSavePartial = "config-save-partial"
	MsgIsFullScreen      = "is-full-screen"
	MsgToggleFullscreen  = "toggle-fullscreen"

	// Surface -> host state pushes (menu mirroring, unacknowledged).
	PushUIState        = "update-ui-state"
	PushDashboardState = "update-dashboard-state"
	PushCameraList     = "update-camera-list"
	PushCameraZoom     = "update-camera-zoom"

	// Host -> surface pushes.
	PushFullscreenChange = "fullscreen-change"
	CmdToggleNavigation  = "toggle-navigation"
	CmdToggleNavOnly     = "toggle-nav-only"
	CmdToggleHeaderOnly  = "toggle-header-only"
	CmdToggleWidgetPanel = "toggle-widget-panel"
	CmdReturnToDashboard = "return-to-dashboard"
	CmdZoomCamera        = "zoom-camera"
)

// UIState mirrors the surface's visibility flags for the host menu.
type UIState struct {
	NavHidden    bool `json:"navHidden"`
	HeaderHidden bool `json:"headerHidden"`
}

// CameraInfo describes one detected camera tile.
type CameraInfo struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// CameraList reports the detected tiles and whether zoom drive is usable.
type CameraList struct {
	Cameras       []CameraInfo `json:"cameras"`
	ZoomSupported bool         `json:"zoomSupported"`
}
