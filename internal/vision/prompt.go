package vision

// Prompt instructs the model to return plastic detections as JSON with
// normalized corner boxes.
const Prompt = `Task: Analyze this image containing mixed wastes and detect plastic items with high precision.

Instructions:
1. Identify ONLY plastic objects in the image (bottles, containers, bags, wrappers, etc.)
2. Be very accurate in classifying each plastic item into one of these categories: PET, HDPE, PVC, LDPE, PP, PS, or Others
3. For each detected plastic object, provide:
    - The most precise plastic type label possible (e.g., PET, HDPE)
    - A specific and detailed item description (e.g., "clear water bottle", "white shampoo container")
    - A confidence score between 0 and 1
    - A bounding box in the format [x1, y1, x2, y2] where x1,y1 is the top-left corner and x2,y2 is the bottom-right corner, with all values as floating points between 0 and 1
    - Make the bounding boxes VERY PRECISE and TIGHT around the actual plastic objects
4. If you detect items that are definitely NOT plastic (paper, glass, metal, etc.), set a flag "non_plastic_detected" to true
5. Double-check your plastic type classifications to ensure they are accurate based on item appearance and common materials

Return ONLY a valid JSON with this exact structure:
{
  "detections": [
    {
      "label": "PET",
      "item_description": "water bottle",
      "confidence": 0.92,
      "bounding_box": [0.1, 0.2, 0.3, 0.4]
    }
  ],
  "non_plastic_detected": false
}

If no plastic items are detected, return {"detections": [], "non_plastic_detected": true/false}.
Do not include any explanation or other text outside the JSON object.`
