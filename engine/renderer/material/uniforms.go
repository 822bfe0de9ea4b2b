package material

import (
	"github.com/Carmen-Shannon/oxy-skin/common"
	"github.com/Carmen-Shannon/oxy-skin/engine/model"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/device"
)

func flag(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// baseUniforms fills the frame-wide part of the draw uniforms. Shadow is identity outside the
// shadow pass.
func baseUniforms(frame *Frame) device.DrawUniforms {
	return device.DrawUniforms{
		ViewProjection: frame.ViewProjection,
		Shadow:         common.IdentityMat4(),
		LightDirection: frame.LightDirection,
		EdgeSize:       frame.EdgeWidth,
		LightColor:     [4]float32{frame.LightColor[0], frame.LightColor[1], frame.LightColor[2], 1},
	}
}

func shadowUniforms(frame *Frame) device.DrawUniforms {
	u := baseUniforms(frame)
	u.Shadow = frame.Shadow
	u.Diffuse = frame.ShadowColor
	return u
}

func edgeUniforms(desc *model.MaterialDescriptor, frame *Frame) device.DrawUniforms {
	u := baseUniforms(frame)
	u.EdgeColor = desc.EdgeColor
	return u
}

func modelUniforms(desc *model.MaterialDescriptor, textures device.TextureBindings, frame *Frame) device.DrawUniforms {
	u := baseUniforms(frame)
	u.Ambient = [4]float32{desc.Ambient[0], desc.Ambient[1], desc.Ambient[2], 1}
	u.Diffuse = [4]float32{desc.Diffuse[0], desc.Diffuse[1], desc.Diffuse[2], desc.Opacity}
	u.Specular = [4]float32{desc.Specular[0], desc.Specular[1], desc.Specular[2], desc.Shininess}
	u.HasDiffuse = flag(textures.Diffuse != 0)
	if textures.Sphere != 0 {
		u.SphereMode = textures.SphereMode
	}
	u.HasToon = flag(textures.Toon != 0)
	return u
}
