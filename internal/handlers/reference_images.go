package handlers

import (
	"context"

	"github.com/shaiso/Reel/internal/provider"
)

// ReferenceImagesName — имя обработчика в конфигурации провайдера.
const ReferenceImagesName = "reference_images"

// Поля тела, в которые раскладывается массив reference_images.
const (
	FirstFrameField = "image"
	LastFrameField  = "image_tail"
)

// ReferenceImages раскладывает массив reference_images в два поля тела:
// первый элемент в "image", второй в "image_tail". Исходное поле удаляется.
//
// Вендоры первого/последнего кадра ждут именно два отдельных поля,
// а шаблон умеет подставить массив только целиком.
type ReferenceImages struct{}

// NewReferenceImages создаёт обработчик.
func NewReferenceImages() *ReferenceImages {
	return &ReferenceImages{}
}

// Name реализует provider.Handler.
func (h *ReferenceImages) Name() string { return ReferenceImagesName }

// Call реализует provider.Caller.
func (h *ReferenceImages) Call(ctx context.Context, call *provider.Call) ([]byte, error) {
	body, ok := call.Request.BodyMap()
	if ok {
		images := stringList(call.Params["reference_images"])
		if len(images) == 0 {
			images = stringList(body["reference_images"])
		}

		delete(body, "reference_images")
		if len(images) > 0 {
			body[FirstFrameField] = images[0]
		}
		if len(images) > 1 {
			body[LastFrameField] = images[1]
		}
	}
	return call.Send(ctx, call.Request)
}

// stringList приводит значение параметра к списку непустых строк.
func stringList(v any) []string {
	switch x := v.(type) {
	case string:
		if x == "" {
			return nil
		}
		return []string{x}
	case []string:
		out := make([]string, 0, len(x))
		for _, s := range x {
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
