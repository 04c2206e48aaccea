package domain

// ProviderConfig — декларативное описание API внешней модели.
//
// Синхронный провайдер описывается только шаблоном submit-запроса и
// ResponseMapping. Асинхронный дополнительно задаёт query-запрос,
// QueryResponseMapping и условия успеха/неудачи.
//
// Шаблоны содержат плейсхолдеры вида {{name}}.
type ProviderConfig struct {
	// Name — логическое имя модели, по нему ищут конфиг.
	Name string `json:"name" toml:"name"`

	// Category — категория: "text", "image", "video".
	Category string `json:"category" toml:"category"`

	// Provider — имя вендора.
	Provider string `json:"provider" toml:"provider"`

	// PriceUnit и PriceValue — справочная цена, движком не используется.
	PriceUnit  string  `json:"price_unit,omitempty" toml:"price_unit"`
	PriceValue float64 `json:"price_value,omitempty" toml:"price_value"`

	// Submit-запрос.
	URLTemplate     string            `json:"url_template" toml:"url_template"`
	RequestMethod   string            `json:"request_method" toml:"request_method"`
	HeadersTemplate map[string]string `json:"headers_template,omitempty" toml:"headers_template"`
	BodyTemplate    any               `json:"body_template,omitempty" toml:"body_template"`
	DefaultParams   map[string]any    `json:"default_params,omitempty" toml:"default_params"`
	ResponseMapping map[string]string `json:"response_mapping,omitempty" toml:"response_mapping"`

	// Query-запрос (только для асинхронных провайдеров).
	QueryURLTemplate      string            `json:"query_url_template,omitempty" toml:"query_url_template"`
	QueryMethod           string            `json:"query_method,omitempty" toml:"query_method"`
	QueryHeadersTemplate  map[string]string `json:"query_headers_template,omitempty" toml:"query_headers_template"`
	QueryBodyTemplate     any               `json:"query_body_template,omitempty" toml:"query_body_template"`
	QueryResponseMapping  map[string]string `json:"query_response_mapping,omitempty" toml:"query_response_mapping"`
	QuerySuccessCondition string            `json:"query_success_condition,omitempty" toml:"query_success_condition"`
	QueryFailCondition    string            `json:"query_fail_condition,omitempty" toml:"query_fail_condition"`
	QuerySuccessMapping   map[string]string `json:"query_success_mapping,omitempty" toml:"query_success_mapping"`
	QueryFailMapping      map[string]string `json:"query_fail_mapping,omitempty" toml:"query_fail_mapping"`

	// CustomHandler и CustomQueryHandler — имена обработчиков, заменяющих шаблонный вызов.
	CustomHandler      string `json:"custom_handler,omitempty" toml:"custom_handler"`
	CustomQueryHandler string `json:"custom_query_handler,omitempty" toml:"custom_query_handler"`
}

// IsAsync возвращает true, если провайдер работает по схеме submit-and-poll.
func (p *ProviderConfig) IsAsync() bool {
	return p.QueryURLTemplate != ""
}

// QueryHandlerName возвращает имя обработчика для query-запросов.
// Если отдельный не задан, используется CustomHandler.
func (p *ProviderConfig) QueryHandlerName() string {
	if p.CustomQueryHandler != "" {
		return p.CustomQueryHandler
	}
	return p.CustomHandler
}
