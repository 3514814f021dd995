package renderer

// Built-in GLSL programs. All vertex stages take clip-space positions in
// a_pos at location 0.

// quadVertexShader passes the fullscreen quad through and emits UVs.
const quadVertexShader = `#version 410 core
layout(location = 0) in vec2 a_pos;
layout(location = 1) in vec2 a_uv;
out vec2 v_uv;
void main() {
    v_uv = a_uv;
    gl_Position = vec4(a_pos, 0.0, 1.0);
}
`

// diffusionFragmentShader advances the heat field one explicit Euler step
// of the 5-point Laplacian. Edges clamp, so heat does not leak out.
const diffusionFragmentShader = `#version 410 core
uniform sampler2D u_state;
uniform float u_rate;
uniform float u_decay;
in vec2 v_uv;
out vec4 outColor;

float at(ivec2 p, ivec2 size) {
    return texelFetch(u_state, clamp(p, ivec2(0), size - 1), 0).r;
}

void main() {
    ivec2 size = textureSize(u_state, 0);
    ivec2 p = ivec2(gl_FragCoord.xy);
    float c = at(p, size);
    float lap = at(p + ivec2(1, 0), size) + at(p - ivec2(1, 0), size)
              + at(p + ivec2(0, 1), size) + at(p - ivec2(0, 1), size) - 4.0 * c;
    outColor = vec4((c + u_rate * lap) * u_decay, 0.0, 0.0, 1.0);
}
`

// colorizeFragmentShader maps the red channel of u_field from u_range
// onto the ramp u_low..u_high.
const colorizeFragmentShader = `#version 410 core
uniform sampler2D u_field;
uniform vec4 u_low;
uniform vec4 u_high;
uniform vec2 u_range;
in vec2 v_uv;
out vec4 outColor;
void main() {
    float v = texture(u_field, v_uv).r;
    float t = clamp((v - u_range.x) / (u_range.y - u_range.x), 0.0, 1.0);
    outColor = mix(u_low, u_high, t);
}
`

// markerVertexShader places one copy of the base shape per instance.
// a_offset is in data space and goes through u_proj; the shape itself is
// scaled by u_size in clip space so markers keep their size when the data
// bounds change.
const markerVertexShader = `#version 410 core
layout(location = 0) in vec2 a_pos;
layout(location = 1) in vec2 a_offset;
layout(location = 2) in vec4 a_color;
uniform mat4 u_proj;
uniform float u_size;
out vec4 v_color;
void main() {
    vec4 center = u_proj * vec4(a_offset, 0.0, 1.0);
    v_color = a_color;
    gl_Position = vec4(center.xy + a_pos * u_size, 0.0, 1.0);
}
`

const markerFragmentShader = `#version 410 core
in vec4 v_color;
out vec4 outColor;
void main() {
    outColor = v_color;
}
`

// solidVertexShader and solidFragmentShader draw geometry in one color.
const solidVertexShader = `#version 410 core
layout(location = 0) in vec2 a_pos;
void main() {
    gl_Position = vec4(a_pos, 0.0, 1.0);
}
`

const solidFragmentShader = `#version 410 core
uniform vec4 u_color;
out vec4 outColor;
void main() {
    outColor = u_color;
}
`
