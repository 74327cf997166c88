package whatsapp

// Button is a single reply button on an interactive message.
// The Cloud API allows at most three per message.
type Button struct {
	ID    string
	Title string
}

// Row is a selectable row inside an interactive list section.
type Row struct {
	ID          string
	Title       string
	Description string
}

// Section groups rows in an interactive list message.
type Section struct {
	Title string
	Rows  []Row
}

// SendResult carries the provider-assigned id of an accepted message.
type SendResult struct {
	MessageID string
}

type textPayload struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

type imagePayload struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Image            struct {
		Link    string `json:"link"`
		Caption string `json:"caption,omitempty"`
	} `json:"image"`
}

type interactivePayload struct {
	MessagingProduct string          `json:"messaging_product"`
	RecipientType    string          `json:"recipient_type"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Interactive      interactiveBody `json:"interactive"`
}

type interactiveBody struct {
	Type string `json:"type"` // "button" or "list"
	Body struct {
		Text string `json:"text"`
	} `json:"body"`
	Action interactiveAction `json:"action"`
}

type interactiveAction struct {
	Buttons  []wireButton  `json:"buttons,omitempty"`
	Button   string        `json:"button,omitempty"`
	Sections []wireSection `json:"sections,omitempty"`
}

type wireButton struct {
	Type  string `json:"type"`
	Reply struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"reply"`
}

type wireSection struct {
	Title string    `json:"title,omitempty"`
	Rows  []wireRow `json:"rows"`
}

type wireRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}
