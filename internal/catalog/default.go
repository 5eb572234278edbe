package catalog

// defaultCatalog ships the curated model list used when no catalog file is
// present under the atelier home.
const defaultCatalog = `
starter_diffusers:
  - name: stable-diffusion-1.5
    repo: runwayml/stable-diffusion-v1-5
    description: The classic 1.5 base model, broadly compatible with community assets
    recommended: true
    default: true
  - name: stable-diffusion-1.5-inpainting
    repo: runwayml/stable-diffusion-inpainting
    description: 1.5 variant fine-tuned for inpainting and outpainting
    recommended: true
  - name: stable-diffusion-2.1
    repo: stabilityai/stable-diffusion-2-1
    description: 768x768 base model from the 2.x line
  - name: sdxl-base-1.0
    repo: stabilityai/stable-diffusion-xl-base-1.0
    description: SDXL base model for high resolution generation
    recommended: true
  - name: sdxl-refiner-1.0
    repo: stabilityai/stable-diffusion-xl-refiner-1.0
    description: SDXL refiner stage, pairs with the base model
  - name: dreamlike-photoreal-2.0
    repo: dreamlike-art/dreamlike-photoreal-2.0
    description: Photorealistic model built on 1.5

additional_diffusers:
  - prompthero/openjourney
  - nitrosocke/Ghibli-Diffusion
  - wavymulder/Analog-Diffusion
  - Fictiverse/Stable_Diffusion_PaperCut_Model
  - stabilityai/stable-diffusion-2-depth

controlnet:
  - lllyasviel/control_v11p_sd15_canny
  - lllyasviel/control_v11f1p_sd15_depth
  - lllyasviel/control_v11p_sd15_openpose
  - lllyasviel/control_v11p_sd15_scribble
  - lllyasviel/control_v11p_sd15_seg
  - lllyasviel/control_v11p_sd15_normalbae
  - lllyasviel/control_v11p_sd15_lineart
  - lllyasviel/control_v11e_sd15_shuffle

lora:
  - latent-consistency/lcm-lora-sdv1-5
  - latent-consistency/lcm-lora-sdxl
  - ostris/ikea-instructions-lora-sdxl
  - ostris/super-cereal-sdxl-lora

textual_inversion:
  - sd-concepts-library/cat-toy
  - sd-concepts-library/birb-style
  - sd-concepts-library/gta5-artwork
  - sd-concepts-library/midjourney-style
`
