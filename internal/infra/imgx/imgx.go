// Package imgx 处理导出到媒体库的海报图片。
package imgx

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	_ "image/png" // 注册 PNG 解码器（来源不一定总是 jpeg）

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // 注册 WebP 解码器
)

// DefaultPosterWidth 是导出海报的最大宽度（Kodi/Jellyfin 的 poster 足够清晰）。
const DefaultPosterWidth = 1000

// PosterJPEG 把海报规范化为 JPEG（用于 poster.jpg）。
//
// 约束：
// - 输入允许是 JPEG/PNG/WebP
// - 输出固定为 JPEG
// - 宽度超过 maxWidth 时等比缩小；不放大（maxWidth<=0 时用 DefaultPosterWidth）
func PosterJPEG(raw []byte, maxWidth int) ([]byte, error) {
	if len(raw) == 0 {
		return nil, errors.New("图片为空")
	}
	if maxWidth <= 0 {
		maxWidth = DefaultPosterWidth
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("图片尺寸无效")
	}

	if b.Dx() > maxWidth {
		h := b.Dy() * maxWidth / b.Dx()
		if h < 1 {
			h = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
		img = dst
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
