package console

const helpText = `
	Commands:
	  key <value>   store the API key (whitespace is removed; empty clears)
	  clear-key     remove the stored API key
	  test-key      check the stored key against the provider
	  camera        enable the camera
	  stop          stop the camera
	  capture       freeze the current frame
	  analyze       send the captured frame for analysis
	  history       show this session's analyses
	  status        show the current state
	  help          show this help
	  quit          stop the camera and exit
`

const (
	MsgUnknownCommand = "Unknown command %q. Type help for a list of commands."
	MsgHistoryEmpty   = "No analyses yet."
	MsgGoodbye        = "Camera stopped. Bye!"
)

const statusTemplate = `
	%s
	%s · Camera: %s · Preview: %s
	%s
`

const panelTemplate = `
	%s %s
	%s
	  Brand: %s
	  Country: %s
	  Confidence: %s
	  Reasoning: %s
`
