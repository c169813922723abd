package schema

// Schema is a declarative validation tree over nested objects and arrays.
// It implements a reduced feature set on purpose: type, properties,
// required, enum, minimum/maximum and items. No external schema language
// is assumed.
type Schema struct {
	Type        string             `yaml:"type,omitempty" json:"type,omitempty"`
	Description string             `yaml:"description,omitempty" json:"description,omitempty"`
	Properties  map[string]*Schema `yaml:"properties,omitempty" json:"properties,omitempty"`
	Required    []string           `yaml:"required,omitempty" json:"required,omitempty"`
	Enum        []any              `yaml:"enum,omitempty" json:"enum,omitempty"`
	Minimum     *float64           `yaml:"minimum,omitempty" json:"minimum,omitempty"`
	Maximum     *float64           `yaml:"maximum,omitempty" json:"maximum,omitempty"`
	Items       *Schema            `yaml:"items,omitempty" json:"items,omitempty"`
}

func floatPtr(f float64) *float64 { return &f }

// EstimationPaymentSchema 估驗計價單 Schema
func EstimationPaymentSchema() *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"document_type": {
				Type: "string",
				Enum: []any{"estimation", "payment", "contract", "other"},
			},
			"document_id":   {Type: "string"},
			"period_number": {Type: "integer"},
			"contract_info": {
				Type: "object",
				Properties: map[string]*Schema{
					"contract_number": {Type: "string"},
					"contract_name":   {Type: "string"},
					"contract_amount": {Type: "number", Minimum: floatPtr(0)},
					"contractor":      {Type: "string"},
					"owner":           {Type: "string"},
					"start_date":      {Type: "string"},
					"end_date":        {Type: "string"},
					"payment_terms":   {Type: "string"},
				},
			},
			"items": {
				Type: "array",
				Items: &Schema{
					Type: "object",
					Properties: map[string]*Schema{
						"item_no":           {Type: "string"},
						"description":       {Type: "string"},
						"unit":              {Type: "string"},
						"quantity":          {Type: "number"},
						"unit_price":        {Type: "number"},
						"amount":            {Type: "number"},
						"previous_quantity": {Type: "number"},
						"total_quantity":    {Type: "number"},
						"remarks":           {Type: "string"},
					},
				},
			},
			"period_amount":         {Type: "number"},
			"previous_accumulation": {Type: "number"},
			"current_accumulation":  {Type: "number"},
			"payment_conditions": {
				Type: "array",
				Items: &Schema{
					Type: "object",
					Properties: map[string]*Schema{
						"condition_text":   {Type: "string"},
						"parsed_condition": {Type: "object"},
					},
				},
			},
			"metadata": {Type: "object"},
		},
		Required: []string{"document_type", "document_id"},
	}
}

// ContractInfoSchema 工程合約 Schema
func ContractInfoSchema() *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"contract_number":      {Type: "string"},
			"contract_name":        {Type: "string"},
			"contract_amount":      {Type: "number", Minimum: floatPtr(0)},
			"current_total_amount": {Type: "number", Minimum: floatPtr(0)},
			"contractor":           {Type: "string"},
			"owner":                {Type: "string"},
			"start_date":           {Type: "string"},
			"end_date":             {Type: "string"},
			"payment_terms":        {Type: "string"},
		},
		Required: []string{"contract_number"},
	}
}
