package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/agrisense/internal/model"
)

// plantingDateLayout は作付日のJSON表現。
const plantingDateLayout = "2006-01-02"

// FarmServiceInterface は圃場ハンドラーが必要とするサービスインターフェース。
type FarmServiceInterface interface {
	Get(ctx context.Context, id string) (*model.Farm, error)
	List(ctx context.Context) ([]*model.Farm, error)
	Create(ctx context.Context, in model.FarmInput, caller *model.Principal) (*model.Farm, error)
	Update(ctx context.Context, id string, in model.FarmInput, caller *model.Principal) (*model.Farm, error)
	Delete(ctx context.Context, id string) error
}

// FarmHandler は圃場管理のHTTPハンドラー。
type FarmHandler struct {
	service FarmServiceInterface
}

// NewFarmHandler はFarmHandlerを生成する。
func NewFarmHandler(service FarmServiceInterface) *FarmHandler {
	return &FarmHandler{service: service}
}

// farmRequest は圃場の作成・更新リクエストのボディ。
type farmRequest struct {
	Name         string  `json:"name"`
	Location     string  `json:"location"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	SizeHectares float64 `json:"sizeHectares"`
	CropType     string  `json:"cropType"`
	PlantingDate string  `json:"plantingDate"`
	GrowthStage  string  `json:"growthStage"`
	OwnerPhone   string  `json:"ownerPhone"`
}

// farmResponse は圃場のAPIレスポンス。
type farmResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Location     string    `json:"location"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	SizeHectares float64   `json:"sizeHectares"`
	CropType     string    `json:"cropType"`
	PlantingDate string    `json:"plantingDate,omitempty"`
	GrowthStage  string    `json:"growthStage"`
	OwnerPhone   string    `json:"ownerPhone"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ListFarms は圃場一覧を返す。
// GET /api/v1/farms
func (h *FarmHandler) ListFarms(w http.ResponseWriter, r *http.Request) {
	farms, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]farmResponse, len(farms))
	for i, f := range farms {
		resp[i] = toFarmResponse(f)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetFarm は圃場詳細を返す。
// GET /api/v1/farms/{farmId}
func (h *FarmHandler) GetFarm(w http.ResponseWriter, r *http.Request) {
	farm, err := h.service.Get(r.Context(), chi.URLParam(r, "farmId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFarmResponse(farm))
}

// CreateFarm は圃場を登録する。
// POST /api/v1/farms
func (h *FarmHandler) CreateFarm(w http.ResponseWriter, r *http.Request) {
	caller := requirePrincipal(w, r)
	if caller == nil {
		return
	}

	in, ok := decodeFarmInput(w, r)
	if !ok {
		return
	}

	farm, err := h.service.Create(r.Context(), in, caller)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFarmResponse(farm))
}

// UpdateFarm は圃場情報を更新する。
// PUT /api/v1/farms/{farmId}
func (h *FarmHandler) UpdateFarm(w http.ResponseWriter, r *http.Request) {
	caller := requirePrincipal(w, r)
	if caller == nil {
		return
	}

	in, ok := decodeFarmInput(w, r)
	if !ok {
		return
	}

	farm, err := h.service.Update(r.Context(), chi.URLParam(r, "farmId"), in, caller)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFarmResponse(farm))
}

// DeleteFarm は圃場を削除する。
// DELETE /api/v1/farms/{farmId}
func (h *FarmHandler) DeleteFarm(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "farmId")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeFarmInput はリクエストボディをFarmInputに変換する。
func decodeFarmInput(w http.ResponseWriter, r *http.Request) (model.FarmInput, bool) {
	var req farmRequest
	if !decodeJSON(w, r, &req) {
		return model.FarmInput{}, false
	}

	in := model.FarmInput{
		Name:         req.Name,
		Location:     req.Location,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		SizeHectares: req.SizeHectares,
		CropType:     req.CropType,
		GrowthStage:  req.GrowthStage,
		OwnerPhone:   req.OwnerPhone,
	}
	if req.PlantingDate != "" {
		d, err := time.Parse(plantingDateLayout, req.PlantingDate)
		if err != nil {
			handleServiceError(w, r, model.NewValidationError("plantingDate must be formatted as YYYY-MM-DD"))
			return model.FarmInput{}, false
		}
		in.PlantingDate = &d
	}
	return in, true
}

func toFarmResponse(f *model.Farm) farmResponse {
	resp := farmResponse{
		ID:           f.ID,
		Name:         f.Name,
		Location:     f.Location,
		Latitude:     f.Latitude,
		Longitude:    f.Longitude,
		SizeHectares: f.SizeHectares,
		CropType:     f.CropType,
		GrowthStage:  f.GrowthStage,
		OwnerPhone:   f.OwnerPhone,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
	if f.PlantingDate != nil {
		resp.PlantingDate = f.PlantingDate.Format(plantingDateLayout)
	}
	return resp
}
