package catalog

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Unit struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
