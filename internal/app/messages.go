package app

// =============================================================================
// Credential messages
// =============================================================================

const (
	MsgAddKey          = "Add your API key in Setup to enable scanning."
	MsgKeyStoredEnable = "Key stored. Enable the camera to begin."
	MsgKeyCleared      = "API key cleared."
	MsgKeySaveFailed   = "Could not save the API key."
	MsgKeyTestInvalid  = "Paste a valid API key that starts with %s."
	MsgKeyTesting      = "Testing API key…"
	MsgKeyVerified     = "Key verified and saved."
	MsgKeyTestFailed   = "API key test failed."
	MsgKeyStatusStored = "Key: stored"
	MsgKeyStatusNotSet = "Key: not set"
)

// =============================================================================
// Camera messages
// =============================================================================

const (
	MsgCameraRequesting  = "Requesting camera access..."
	MsgCameraLive        = "Camera live. Capture a photo to begin."
	MsgCameraInsecure    = "Camera needs HTTPS or localhost. Open via https:// to allow access."
	MsgCameraDenied      = "Camera access denied. Tap Enable camera and allow permission."
	MsgCameraUnavailable = "Camera unavailable. Check the device and tap Enable camera to retry."
	MsgCameraStopped     = "Camera stopped."
)

// =============================================================================
// Capture and analysis messages
// =============================================================================

const (
	MsgCaptureNeedsCamera = "Enable the camera before capturing."
	MsgCaptured           = "Captured. Ready to analyze."
	MsgCaptureFailed      = "Capture failed. Try again."
	MsgCaptureFirst       = "Capture an image before analyzing."
	MsgEnterKey           = "Enter your API key to analyze."
	MsgKeyLooksWrong      = "Paste only the raw API key (starts with %s), not an error message."
	MsgAnalyzing          = "Analyzing the product…"
	MsgAnalysisInFlight   = "Already analyzing this image."
	MsgAnalysisComplete   = "Analysis complete."
	MsgAnalysisFailed     = "Analysis failed. Check your API key and try again."
)

// =============================================================================
// Panel texts
// =============================================================================

const (
	Placeholder = "—"

	PanelWaitingForCapture   = "Waiting for capture…"
	PanelWaitingToAnalyze    = "Waiting to analyze image."
	PanelWaitingForAnalysis  = "Waiting for analysis…"
	PanelAnalyzing           = "Analyzing image…"
	PanelWorking             = "Working"
	PanelReasoningWorking    = "Working…"
	PanelRequestFailed       = "Request failed."
	PanelRequestFailedPill   = "Error"
	PanelRequestFailedAdvice = "Check your API key and plan."
)
